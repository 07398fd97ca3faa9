package compose

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidDocument = errors.New("invalid compose document")
	ErrServiceNotFound = errors.New("compose service not found")
)

// Document is a compose file held as a yaml node tree so keys we do not
// touch are written back as they were read.
type Document struct {
	Path string
	root yaml.Node
}

// Patch describes edits applied to a single service.
type Patch struct {
	Service string
	// Command replaces the service command when non-empty.
	Command string
	// Volumes are appended to the service volume list in order. Existing
	// entries are kept and duplicates are not collapsed.
	Volumes []string
}

// Load reads and parses the compose file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse decodes compose YAML from memory.
func Parse(data []byte) (*Document, error) {
	d := &Document{}
	if err := yaml.Unmarshal(data, &d.root); err != nil {
		return nil, fmt.Errorf("failed to parse compose yaml: %w", err)
	}
	if d.root.Kind != yaml.DocumentNode || len(d.root.Content) == 0 || d.root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level is not a mapping", ErrInvalidDocument)
	}
	return d, nil
}

func lookup(m *yaml.Node, key string) (int, *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key && !isMerge(m.Content[i]) {
			return i + 1, m.Content[i+1]
		}
	}
	return -1, nil
}

// resolve follows aliases to the node they refer to.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isMerge(k *yaml.Node) bool {
	return k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge"
}

// find looks key up in m, falling back to "<<" merge sources in order.
// The returned node is alias-resolved; local is false when the value is
// inherited through a merge key.
func find(m *yaml.Node, key string) (n *yaml.Node, local bool) {
	if _, v := lookup(m, key); v != nil {
		return resolve(v), true
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if !isMerge(m.Content[i]) {
			continue
		}
		src := resolve(m.Content[i+1])
		sources := []*yaml.Node{src}
		if src != nil && src.Kind == yaml.SequenceNode {
			sources = src.Content
		}
		for _, s := range sources {
			s = resolve(s)
			if s == nil || s.Kind != yaml.MappingNode {
				continue
			}
			if v, _ := find(s, key); v != nil {
				return v, false
			}
		}
	}
	return nil, false
}

// copyEntry duplicates a sequence entry for use in a new list. Anchored
// entries become aliases so the anchor is not emitted twice.
func copyEntry(n *yaml.Node) *yaml.Node {
	if n.Anchor != "" {
		return &yaml.Node{Kind: yaml.AliasNode, Value: n.Anchor, Alias: n}
	}
	c := *n
	return &c
}

func (d *Document) services() (*yaml.Node, error) {
	_, svcs := lookup(d.root.Content[0], "services")
	if svcs == nil {
		return nil, fmt.Errorf("%w: no services section", ErrInvalidDocument)
	}
	if svcs.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: services is not a mapping", ErrInvalidDocument)
	}
	return svcs, nil
}

func (d *Document) service(name string) (*yaml.Node, error) {
	svcs, err := d.services()
	if err != nil {
		return nil, err
	}
	idx, svc := lookup(svcs, name)
	if svc == nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if svc.Kind == yaml.AliasNode {
		// "maven: *base" shares the anchored mapping. Give the service its
		// own mapping that merges the anchor so edits stay local.
		if target := resolve(svc); target == nil || target.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: service %s is not a mapping", ErrInvalidDocument, name)
		}
		svc = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!merge", Value: "<<"},
			svc,
		}}
		svcs.Content[idx] = svc
	}
	if svc.Kind != yaml.MappingNode {
		// "maven:" with nothing under it decodes as a null scalar.
		if svc.Kind == yaml.ScalarNode && svc.ShortTag() == "!!null" {
			svc.Kind, svc.Tag, svc.Value = yaml.MappingNode, "!!map", ""
			return svc, nil
		}
		return nil, fmt.Errorf("%w: service %s is not a mapping", ErrInvalidDocument, name)
	}
	return svc, nil
}

// ServiceNames lists the services defined in the document, sorted.
func (d *Document) ServiceNames() []string {
	svcs, err := d.services()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(svcs.Content)/2)
	for i := 0; i+1 < len(svcs.Content); i += 2 {
		out = append(out, svcs.Content[i].Value)
	}
	sort.Strings(out)
	return out
}

// Command returns the scalar command of a service, or "" if unset or in list form.
func (d *Document) Command(service string) (string, error) {
	svc, err := d.service(service)
	if err != nil {
		return "", err
	}
	cmd, _ := find(svc, "command")
	if cmd == nil || cmd.Kind != yaml.ScalarNode {
		return "", nil
	}
	return cmd.Value, nil
}

// Volumes returns the volume entries of a service in file order.
func (d *Document) Volumes(service string) ([]string, error) {
	svc, err := d.service(service)
	if err != nil {
		return nil, err
	}
	vols, _ := find(svc, "volumes")
	if vols == nil || vols.ShortTag() == "!!null" {
		return nil, nil
	}
	if vols.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: %s.volumes is not a list", ErrInvalidDocument, service)
	}
	out := make([]string, 0, len(vols.Content))
	for _, v := range vols.Content {
		out = append(out, resolve(v).Value)
	}
	return out, nil
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// Apply performs the patch. The service must already exist.
func (d *Document) Apply(p Patch) error {
	svc, err := d.service(p.Service)
	if err != nil {
		return err
	}
	if p.Command != "" {
		if idx, _ := lookup(svc, "command"); idx >= 0 {
			svc.Content[idx] = strNode(p.Command)
		} else {
			svc.Content = append(svc.Content, strNode("command"), strNode(p.Command))
		}
	}
	if len(p.Volumes) == 0 {
		return nil
	}
	vols, err := ownVolumes(svc, p.Service)
	if err != nil {
		return err
	}
	for _, v := range p.Volumes {
		vols.Content = append(vols.Content, strNode(v))
	}
	return nil
}

// ownVolumes returns a volume list that belongs to svc alone. Lists reached
// through an alias or a merge key are copied into a local key first, so the
// anchored original is left alone and inherited entries stay in front.
func ownVolumes(svc *yaml.Node, service string) (*yaml.Node, error) {
	idx, raw := lookup(svc, "volumes")
	vols, local := find(svc, "volumes")
	if vols != nil && vols.ShortTag() == "!!null" {
		vols = nil
	}
	if vols != nil && vols.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: %s.volumes is not a list", ErrInvalidDocument, service)
	}
	if local && raw == vols {
		return vols, nil
	}
	own := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	if vols != nil {
		own.Style = vols.Style
		for _, e := range vols.Content {
			own.Content = append(own.Content, copyEntry(e))
		}
	}
	if idx >= 0 {
		svc.Content[idx] = own
	} else {
		svc.Content = append(svc.Content, strNode("volumes"), own)
	}
	return own, nil
}

// Encode serializes the document with two-space indentation.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&d.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write overwrites the file the document was loaded from.
func (d *Document) Write() error {
	if d.Path == "" {
		return fmt.Errorf("compose document has no path")
	}
	data, err := d.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(d.Path, data, 0o644)
}
