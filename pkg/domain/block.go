package domain

import "fmt"

// ParentRef records one step of clone ancestry. It is provenance only and is
// never used for live tree lookup.
type ParentRef struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId,omitempty"`
	Version   int    `json:"version,omitempty"`
}

// BlockMetadata carries descriptive fields.
type BlockMetadata struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
	Palette     string `json:"palette,omitempty"`
}

// BlockRules is the bag of behavioral flags on a block.
type BlockRules struct {
	Frozen    bool   `json:"frozen,omitempty"`
	Fixed     bool   `json:"fixed,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	List      bool   `json:"list,omitempty"`
	Template  bool   `json:"template,omitempty"`
	Authoring bool   `json:"authoring,omitempty"`
	Role      string `json:"role,omitempty"`
}

// SequenceRef points at externally stored sequence bytes.
type SequenceRef struct {
	MD5          string  `json:"md5,omitempty"`
	Length       int     `json:"length"`
	InitialBases string  `json:"initialBases,omitempty"`
	URL          string  `json:"url,omitempty"`
	Trim         *[2]int `json:"trim,omitempty"`
}

// Source records where a block came from.
type Source struct {
	Source string `json:"source,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Block is an immutable-by-convention node in the design tree: a construct
// (ordered components), a list block (options), or a leaf part (sequence).
// Mutators return modified copies and never touch the receiver's backing
// slices or maps.
type Block struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"projectId"`
	Parents    []ParentRef       `json:"parents"`
	Metadata   BlockMetadata     `json:"metadata"`
	Rules      BlockRules        `json:"rules"`
	Components []string          `json:"components"`
	Options    OptionSet         `json:"options"`
	Sequence   SequenceRef       `json:"sequence"`
	Source     Source            `json:"source"`
	Notes      map[string]string `json:"notes,omitempty"`
}

// NewBlock constructs a block with a fresh id.
func NewBlock(name string) Block {
	return Block{
		ID:         NewID(),
		Parents:    []ParentRef{},
		Metadata:   BlockMetadata{Name: name},
		Components: []string{},
		Options:    OptionSet{},
	}
}

// IsConstruct reports whether the block has components.
func (b Block) IsConstruct() bool { return len(b.Components) > 0 }

// IsList reports whether the block is a list block.
func (b Block) IsList() bool { return b.Rules.List }

// IsFrozen reports whether the block rejects mutation.
func (b Block) IsFrozen() bool { return b.Rules.Frozen }

// IsFixed reports whether the block is fixed; fixed blocks are templates.
func (b Block) IsFixed() bool { return b.Rules.Fixed }

// IsTemplate reports whether the block is a template.
func (b Block) IsTemplate() bool { return b.Rules.Fixed || b.Rules.Template }

// IsAuthoring reports whether the template is in authoring mode.
func (b Block) IsAuthoring() bool { return b.Rules.Authoring }

// HasSequence reports whether sequence data is associated with the block.
func (b Block) HasSequence() bool {
	return (b.Sequence.MD5 != "" && b.Sequence.Length > 0) || b.Sequence.URL != ""
}

// HasContents reports whether the block owns components or options.
func (b Block) HasContents() bool {
	return len(b.Components) > 0 || len(b.Options) > 0
}

// Children returns the ids the block owns: components for a construct,
// every option (selected or not) for a list block.
func (b Block) Children() []string {
	if b.IsList() {
		return b.Options.IDs(true)
	}
	out := make([]string, len(b.Components))
	copy(out, b.Components)
	return out
}

// OptionIDs returns the option ids, only selected ones unless includeUnselected.
func (b Block) OptionIDs(includeUnselected bool) []string {
	return b.Options.IDs(includeUnselected)
}

// Copy returns a deep copy sharing no slices or maps with b.
func (b Block) Copy() Block {
	out := b
	if b.Parents != nil {
		out.Parents = make([]ParentRef, len(b.Parents))
		copy(out.Parents, b.Parents)
	}
	if b.Components != nil {
		out.Components = make([]string, len(b.Components))
		copy(out.Components, b.Components)
	}
	out.Options = b.Options.clone()
	if b.Sequence.Trim != nil {
		trim := *b.Sequence.Trim
		out.Sequence.Trim = &trim
	}
	if b.Notes != nil {
		out.Notes = make(map[string]string, len(b.Notes))
		for k, v := range b.Notes {
			out.Notes[k] = v
		}
	}
	return out
}

func (b Block) mutable() (Block, error) {
	if b.Rules.Frozen {
		return Block{}, fmt.Errorf("block %s: %w", b.ID, ErrFrozen)
	}
	return b.Copy(), nil
}

// Clone returns a copy with a new id, detached from any project, unfrozen,
// and with the source recorded at the head of its ancestry.
func (b Block) Clone(version int) Block {
	out := b.Copy()
	out.ID = NewID()
	out.ProjectID = ""
	out.Rules.Frozen = false
	parent := ParentRef{ID: b.ID, ProjectID: b.ProjectID, Version: version}
	out.Parents = append([]ParentRef{parent}, out.Parents...)
	return out
}

// SetName renames the block.
func (b Block) SetName(name string) (Block, error) {
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Metadata.Name = name
	return out, nil
}

// SetDescription updates the description.
func (b Block) SetDescription(desc string) (Block, error) {
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Metadata.Description = desc
	return out, nil
}

// SetColor sets the palette color index.
func (b Block) SetColor(color int) (Block, error) {
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Metadata.Color = color
	return out, nil
}

// SetPalette names the palette the color index refers to.
func (b Block) SetPalette(palette string) (Block, error) {
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Metadata.Palette = palette
	return out, nil
}

// SetRole sets the sequence ontology role shown for the block.
func (b Block) SetRole(role string) (Block, error) {
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Rules.Role = role
	return out, nil
}

// SetFrozen freezes or unfreezes the block. Un-freezing is the one change a
// frozen block accepts.
func (b Block) SetFrozen(frozen bool) Block {
	if b.Rules.Frozen == frozen {
		return b
	}
	out := b.Copy()
	out.Rules.Frozen = frozen
	return out
}

// SetTemplate marks the block as a fixed template.
func (b Block) SetTemplate(template bool) (Block, error) {
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Rules.Fixed = template
	out.Rules.Template = template
	if !template {
		out.Rules.Authoring = false
	}
	return out, nil
}

// SetAuthoring toggles template authoring mode.
func (b Block) SetAuthoring(authoring bool) (Block, error) {
	if authoring && !b.IsTemplate() {
		return Block{}, fmt.Errorf("block %s: can only author a template: %w", b.ID, ErrFixed)
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Rules.Authoring = authoring
	return out, nil
}

func (b Block) SetHidden(hidden bool) (Block, error) {
	if hidden && b.IsTemplate() {
		return Block{}, fmt.Errorf("block %s: cannot hide a template: %w", b.ID, ErrFixed)
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Rules.Hidden = hidden
	return out, nil
}

// SetListBlock converts between list and non-list roles. Becoming a list
// drops components; leaving list mode drops options.
func (b Block) SetListBlock(list bool) (Block, error) {
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	if list {
		out.Components = []string{}
	} else {
		out.Options = OptionSet{}
	}
	out.Rules.List = list
	return out, nil
}

// SetProjectID associates the block with a project. Moving directly between
// two projects is rejected; the id must be cleared first.
func (b Block) SetProjectID(projectID string) (Block, error) {
	if b.ProjectID == projectID {
		return b, nil
	}
	if b.ProjectID != "" && projectID != "" {
		return Block{}, fmt.Errorf("block %s in project %s: %w", b.ID, b.ProjectID, ErrProjectReassign)
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.ProjectID = projectID
	return out, nil
}

func (b Block) checkComponentsEditable() error {
	if b.IsFixed() && !b.IsAuthoring() {
		return fmt.Errorf("block %s: %w", b.ID, ErrFixed)
	}
	if b.IsList() {
		return fmt.Errorf("block %s: %w", b.ID, ErrListBlockComponents)
	}
	return nil
}

// AddComponent inserts componentID at index, or appends when index is out of range.
func (b Block) AddComponent(componentID string, index int) (Block, error) {
	if err := b.checkComponentsEditable(); err != nil {
		return Block{}, err
	}
	if componentID == b.ID {
		return Block{}, fmt.Errorf("block %s: %w", b.ID, ErrSelfReference)
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	if index < 0 || index > len(out.Components) {
		index = len(out.Components)
	}
	out.Components = append(out.Components, "")
	copy(out.Components[index+1:], out.Components[index:])
	out.Components[index] = componentID
	return out, nil
}

// RemoveComponent drops componentID. Removing an absent id returns b unchanged.
func (b Block) RemoveComponent(componentID string) (Block, error) {
	if b.IsFixed() && !b.IsAuthoring() {
		return Block{}, fmt.Errorf("block %s: %w", b.ID, ErrFixed)
	}
	idx := indexOf(b.Components, componentID)
	if idx < 0 {
		return b, nil
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Components = append(out.Components[:idx], out.Components[idx+1:]...)
	return out, nil
}

// MoveComponent relocates an existing component to index.
func (b Block) MoveComponent(componentID string, index int) (Block, error) {
	if err := b.checkComponentsEditable(); err != nil {
		return Block{}, err
	}
	from := indexOf(b.Components, componentID)
	if from < 0 {
		return b, nil
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Components = append(out.Components[:from], out.Components[from+1:]...)
	if index < 0 || index > len(out.Components) {
		index = len(out.Components)
	}
	out.Components = append(out.Components, "")
	copy(out.Components[index+1:], out.Components[index:])
	out.Components[index] = componentID
	return out, nil
}

// AddOptions adds selected options to a list block. Ids already present are
// left as they are.
func (b Block) AddOptions(ids ...string) (Block, error) {
	if !b.IsList() {
		return Block{}, fmt.Errorf("block %s: %w", b.ID, ErrNotList)
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	added := false
	for _, id := range ids {
		if id == b.ID {
			return Block{}, fmt.Errorf("block %s: %w", b.ID, ErrSelfReference)
		}
		if out.Options.Has(id) {
			continue
		}
		out.Options = append(out.Options, Option{ID: id, Selected: true})
		added = true
	}
	if !added {
		return b, nil
	}
	return out, nil
}

// ToggleOptions flips the selection of each id. A toggle that would leave no
// option selected is ignored.
func (b Block) ToggleOptions(ids ...string) (Block, error) {
	if !b.IsList() {
		return Block{}, fmt.Errorf("block %s: %w", b.ID, ErrNotList)
	}
	for _, id := range ids {
		if !b.Options.Has(id) {
			return Block{}, fmt.Errorf("block %s option %s: %w", b.ID, id, ErrOptionMissing)
		}
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	for _, id := range ids {
		idx := out.Options.index(id)
		out.Options[idx].Selected = !out.Options[idx].Selected
	}
	if out.Options.SelectedCount() == 0 {
		return b, nil
	}
	return out, nil
}

// RemoveOptions drops options from a list block.
func (b Block) RemoveOptions(ids ...string) (Block, error) {
	if !b.IsList() {
		return Block{}, fmt.Errorf("block %s: %w", b.ID, ErrNotList)
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	kept := make(OptionSet, 0, len(out.Options))
	for _, opt := range out.Options {
		if indexOf(ids, opt.ID) >= 0 {
			continue
		}
		kept = append(kept, opt)
	}
	if len(kept) == len(b.Options) {
		return b, nil
	}
	out.Options = kept
	return out, nil
}

// SetSequence records a stored sequence. The raw bases never live on the block.
func (b Block) SetSequence(ref SequenceRef, source Source) (Block, error) {
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Sequence = ref
	out.Source = source
	return out, nil
}

// SetSequenceTrim trims bases from each end of the sequence.
func (b Block) SetSequenceTrim(start, end int) (Block, error) {
	if !b.HasSequence() {
		return Block{}, fmt.Errorf("block %s has no sequence to trim", b.ID)
	}
	if start < 0 || end < 0 || start > b.Sequence.Length-1 || end > b.Sequence.Length-1 {
		return Block{}, fmt.Errorf("block %s trim [%d,%d]: %w", b.ID, start, end, ErrIndexOutOfRange)
	}
	out, err := b.mutable()
	if err != nil {
		return Block{}, err
	}
	out.Sequence.Trim = &[2]int{start, end}
	return out, nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
