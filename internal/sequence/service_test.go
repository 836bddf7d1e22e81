package sequence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gencon/internal/blob"
	"gencon/internal/infra/blob/memory"
	"gencon/pkg/domain"
)

func TestPutStoresByHashAndDedupes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store)

	ref, err := svc.Put(ctx, "ACGTACGTAA")
	require.NoError(t, err)
	assert.Equal(t, Hash("ACGTACGTAA"), ref.MD5)
	assert.Equal(t, 10, ref.Length)
	assert.Equal(t, "ACGTAC", ref.InitialBases)
	assert.NotEmpty(t, ref.URL)

	again, err := svc.Put(ctx, "ACGTACGTAA")
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	hashes, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ref.MD5}, hashes)
}

func TestPutValidatesAlphabet(t *testing.T) {
	ctx := context.Background()
	loose := New(memory.New())
	strict := New(memory.New(), WithStrict())

	_, err := loose.Put(ctx, "ACG-T.N")
	require.NoError(t, err)
	_, err = strict.Put(ctx, "ACG-T")
	assert.ErrorIs(t, err, ErrInvalidSequence)
	_, err = loose.Put(ctx, "hello world")
	assert.ErrorIs(t, err, ErrInvalidSequence)
	_, err = strict.Put(ctx, "acgtrykmn")
	assert.NoError(t, err)
}

func TestGetSupportsRanges(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New())
	ref, err := svc.Put(ctx, "AAAACCCCGGGG")
	require.NoError(t, err)

	full, err := svc.Get(ctx, ref.MD5)
	require.NoError(t, err)
	assert.Equal(t, "AAAACCCCGGGG", full)

	part, err := svc.Get(ctx, ref.MD5+"[4:8]")
	require.NoError(t, err)
	assert.Equal(t, "CCCC", part)

	_, err = svc.Get(ctx, ref.MD5+"[4:80]")
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)

	_, err = svc.Get(ctx, "nothex")
	assert.ErrorIs(t, err, ErrInvalidMD5)

	_, err = svc.Get(ctx, Hash("TTTT"))
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestFetchManyDedupesReads(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New()}
	svc := New(store, WithFetchLimit(2))
	a, err := svc.Put(ctx, "AAAATTTT")
	require.NoError(t, err)
	b, err := svc.Put(ctx, "GGGG")
	require.NoError(t, err)

	got, err := svc.FetchMany(ctx, map[string]string{
		"b1": a.MD5,
		"b2": a.MD5 + "[0:4]",
		"b3": a.MD5 + "[4:8]",
		"b4": b.MD5,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b1": "AAAATTTT", "b2": "AAAA", "b3": "TTTT", "b4": "GGGG"}, got)
	assert.Equal(t, int64(2), store.gets.Load())
}

func TestFetchManyFailsOnMissing(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.FetchMany(context.Background(), map[string]string{"x": Hash("CCC")})
	assert.True(t, errors.Is(err, blob.ErrNotFound))
}

func TestBlockSequenceAppliesTrim(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New())
	ref, err := svc.Put(ctx, "AACCGGTT")
	require.NoError(t, err)

	block, err := domain.NewBlock("part").SetSequence(ref, domain.Source{Source: "user"})
	require.NoError(t, err)
	seq, err := svc.BlockSequence(ctx, block)
	require.NoError(t, err)
	assert.Equal(t, "AACCGGTT", seq)

	trimmed, err := block.SetSequenceTrim(2, 1)
	require.NoError(t, err)
	seq, err = svc.BlockSequence(ctx, trimmed)
	require.NoError(t, err)
	assert.Equal(t, "CCGGT", seq)

	empty, err := svc.BlockSequence(ctx, domain.NewBlock("empty"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPruneKeepsReferenced(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New())
	keep, err := svc.Put(ctx, "ACGT")
	require.NoError(t, err)
	_, err = svc.Put(ctx, "TTTT")
	require.NoError(t, err)

	removed, err := svc.Prune(ctx, map[string]bool{keep.MD5: true})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	hashes, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.MD5}, hashes)
}

func TestSignedURLRejectsBadHash(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.SignedURL(context.Background(), "abc", 0)
	assert.ErrorIs(t, err, ErrInvalidMD5)
	_, err = svc.SignedURL(context.Background(), Hash("A"), 0)
	assert.ErrorIs(t, err, blob.ErrUnsupported)
}

func TestParsePseudoMD5(t *testing.T) {
	h := Hash("ACGT")
	p, err := ParsePseudoMD5(h + "[1:3]")
	require.NoError(t, err)
	assert.Equal(t, PseudoMD5{Hash: h, HasRange: true, Start: 1, End: 3}, p)
	assert.Equal(t, h+"[1:3]", p.String())

	_, err = ParsePseudoMD5(h + "[3:1]")
	assert.ErrorIs(t, err, ErrInvalidMD5)

	built, err := NewPseudoMD5(h, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, h, built.String())
}
