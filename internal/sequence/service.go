// Package sequence stores raw sequence bytes in a blob store, addressed by
// their md5, and resolves block sequence references back to bases.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gencon/internal/blob"
	"gencon/internal/observability"
	"gencon/pkg/domain"
)

var (
	// ErrInvalidSequence is returned for bases outside the accepted alphabet.
	ErrInvalidSequence = errors.New("sequence has invalid characters")
	// ErrInvalidMD5 is returned for malformed hashes and ranges.
	ErrInvalidMD5 = errors.New("invalid sequence md5")
)

var (
	strictRegexp = regexp.MustCompile(`^[ACGTURYKMSWBDHVNacgturykmswbdhvn]*$`)
	looseRegexp  = regexp.MustCompile(`^[ACGTURYKMSWBDHVNXacgturykmswbdhvnx\-.*]*$`)
)

const (
	contentType       = "text/plain"
	initialBaseCount  = 6
	defaultFetchLimit = 8
)

// Option configures a Service.
type Option func(*Service)

// WithStrict accepts only IUPAC nucleotide codes.
func WithStrict() Option { return func(s *Service) { s.strict = true } }

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFetchLimit bounds concurrent blob reads in FetchMany.
func WithFetchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

// Service writes and reads sequences.
type Service struct {
	store      blob.Store
	strict     bool
	fetchLimit int
	logger     observability.Logger
}

// New builds a service over store.
func New(store blob.Store, opts ...Option) *Service {
	s := &Service{store: store, fetchLimit: defaultFetchLimit, logger: observability.NoopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(hash string) string {
	return hash[:2] + "/" + hash
}

// Validate checks seq against the configured alphabet.
func (s *Service) Validate(seq string) error {
	re := looseRegexp
	if s.strict {
		re = strictRegexp
	}
	if !re.MatchString(seq) {
		return ErrInvalidSequence
	}
	return nil
}

// Put stores seq and returns the reference to record on a block. Writing a
// sequence that is already stored is not an error.
func (s *Service) Put(ctx context.Context, seq string) (domain.SequenceRef, error) {
	if err := s.Validate(seq); err != nil {
		return domain.SequenceRef{}, err
	}
	hash := Hash(seq)
	info, err := s.store.Put(ctx, key(hash), strings.NewReader(seq), blob.PutOptions{ContentType: contentType})
	if errors.Is(err, blob.ErrExists) {
		s.logger.Debug("sequence already stored", "md5", hash)
		info, err = s.store.Head(ctx, key(hash))
	}
	if err != nil {
		return domain.SequenceRef{}, fmt.Errorf("write sequence %s: %w", hash, err)
	}
	initial := seq
	if len(initial) > initialBaseCount {
		initial = initial[:initialBaseCount]
	}
	return domain.SequenceRef{MD5: hash, Length: len(seq), InitialBases: initial, URL: info.URL}, nil
}

// Get resolves a hash or pseudo md5 to bases.
func (s *Service) Get(ctx context.Context, pseudo string) (string, error) {
	p, err := ParsePseudoMD5(pseudo)
	if err != nil {
		return "", err
	}
	seq, err := s.read(ctx, p.Hash)
	if err != nil {
		return "", err
	}
	return slice(seq, p)
}

func (s *Service) read(ctx context.Context, hash string) (string, error) {
	_, rc, err := s.store.Get(ctx, key(hash))
	if err != nil {
		return "", fmt.Errorf("read sequence %s: %w", hash, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read sequence %s: %w", hash, err)
	}
	return string(b), nil
}

func slice(seq string, p PseudoMD5) (string, error) {
	if !p.HasRange {
		return seq, nil
	}
	if p.End > len(seq) {
		return "", fmt.Errorf("range %s beyond length %d: %w", p, len(seq), domain.ErrIndexOutOfRange)
	}
	return seq[p.Start:p.End], nil
}

// FetchMany resolves {key: pseudo md5} to {key: bases}. Each distinct hash
// is read once, concurrently, bounded by the fetch limit.
func (s *Service) FetchMany(ctx context.Context, refs map[string]string) (map[string]string, error) {
	parsed := make(map[string]PseudoMD5, len(refs))
	hashes := make(map[string]struct{})
	for k, ref := range refs {
		p, err := ParsePseudoMD5(ref)
		if err != nil {
			return nil, err
		}
		parsed[k] = p
		hashes[p.Hash] = struct{}{}
	}

	fetched := make(map[string]string, len(hashes))
	results := make(chan [2]string, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchLimit)
	for hash := range hashes {
		g.Go(func() error {
			seq, err := s.read(gctx, hash)
			if err != nil {
				return err
			}
			results <- [2]string{hash, seq}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)
	for r := range results {
		fetched[r[0]] = r[1]
	}

	out := make(map[string]string, len(parsed))
	for k, p := range parsed {
		seq, err := slice(fetched[p.Hash], p)
		if err != nil {
			return nil, err
		}
		out[k] = seq
	}
	return out, nil
}

// BlockSequence returns the block's bases with its trim applied.
func (s *Service) BlockSequence(ctx context.Context, b domain.Block) (string, error) {
	if b.Sequence.MD5 == "" {
		return "", nil
	}
	seq, err := s.Get(ctx, b.Sequence.MD5)
	if err != nil {
		return "", err
	}
	if t := b.Sequence.Trim; t != nil {
		if t[0]+t[1] > len(seq) {
			return "", nil
		}
		seq = seq[t[0] : len(seq)-t[1]]
	}
	return seq, nil
}

// SignedURL returns a time-limited download URL for hash.
func (s *Service) SignedURL(ctx context.Context, hash string, expiry time.Duration) (string, error) {
	if !ValidMD5(hash) {
		return "", fmt.Errorf("md5 %q: %w", hash, ErrInvalidMD5)
	}
	return s.store.PresignURL(ctx, key(hash), blob.SignedURLOptions{Expiry: expiry})
}

// List returns the md5 of every stored sequence.
func (s *Service) List(ctx context.Context) ([]string, error) {
	infos, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		if i := strings.LastIndexByte(info.Key, '/'); i >= 0 && ValidMD5(info.Key[i+1:]) {
			out = append(out, info.Key[i+1:])
		}
	}
	return out, nil
}

// Prune deletes stored sequences whose md5 is not in keep and returns how
// many were removed.
func (s *Service) Prune(ctx context.Context, keep map[string]bool) (int, error) {
	hashes, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, hash := range hashes {
		if keep[hash] {
			continue
		}
		ok, err := s.store.Delete(ctx, key(hash))
		if err != nil {
			return removed, fmt.Errorf("prune %s: %w", hash, err)
		}
		if ok {
			removed++
		}
	}
	s.logger.Info("pruned sequences", "removed", removed, "kept", len(hashes)-removed)
	return removed, nil
}
