package template

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// =============================================================================
// UNKNOWN-FIELD PRESERVATION
// =============================================================================
// Each object type decodes its known fields through a method-less alias and
// stashes every other key in Extra. Encoding re-merges Extra; known fields win
// on key collision.

var knownKeysCache sync.Map // reflect.Type -> map[string]struct{}

func knownKeys(t reflect.Type) map[string]struct{} {
	if cached, ok := knownKeysCache.Load(t); ok {
		return cached.(map[string]struct{})
	}
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" || !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = field.Name
		}
		keys[name] = struct{}{}
	}
	knownKeysCache.Store(t, keys)
	return keys
}

// orEmpty keeps required list fields as [] rather than null on the wire.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// decodeWithExtra decodes data into plain and returns the unrecognized keys.
// Known fields match by exact key only; "NAME" is an unknown key, not name.
func decodeWithExtra(data []byte, plain any) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	known := knownKeys(reflect.TypeOf(plain).Elem())
	fields := make(map[string]json.RawMessage, len(raw))
	var extra map[string]any
	for key, value := range raw {
		if _, ok := known[key]; ok {
			fields[key] = value
			continue
		}
		decoded, err := decodeAny(value)
		if err != nil {
			return nil, err
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = decoded
	}

	exact, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exact, plain); err != nil {
		return nil, err
	}
	return extra, nil
}

// decodeAny decodes a raw value keeping numbers as json.Number so they
// re-encode byte-for-byte.
func decodeAny(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// encodeWithExtra encodes plain and merges extra into the resulting object.
func encodeWithExtra(plain any, extra map[string]any) ([]byte, error) {
	data, err := json.Marshal(plain)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, exists := fields[key]; exists {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		fields[key] = raw
	}
	return json.Marshal(fields)
}

func (t SpecialistTemplate) MarshalJSON() ([]byte, error) {
	type plain SpecialistTemplate
	return encodeWithExtra(plain(t), t.Extra)
}

func (t *SpecialistTemplate) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain SpecialistTemplate
	extra, err := decodeWithExtra(data, (*plain)(t))
	t.Extra = extra
	return err
}

func (p Persona) MarshalJSON() ([]byte, error) {
	type plain Persona
	p.Values = orEmpty(p.Values)
	p.Attributes = orEmpty(p.Attributes)
	p.TechStack = orEmpty(p.TechStack)
	return encodeWithExtra(plain(p), p.Extra)
}

func (p *Persona) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain Persona
	extra, err := decodeWithExtra(data, (*plain)(p))
	p.Extra = extra
	return err
}

func (c Capabilities) MarshalJSON() ([]byte, error) {
	type plain Capabilities
	c.Tags = orEmpty(c.Tags)
	if c.Descriptions == nil {
		c.Descriptions = map[string]string{}
	}
	return encodeWithExtra(plain(c), c.Extra)
}

func (c *Capabilities) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain Capabilities
	extra, err := decodeWithExtra(data, (*plain)(c))
	c.Extra = extra
	return err
}

func (p Prompts) MarshalJSON() ([]byte, error) {
	type plain Prompts
	if p.Default == nil {
		p.Default = map[string]string{}
	}
	return encodeWithExtra(plain(p), p.Extra)
}

func (p *Prompts) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain Prompts
	extra, err := decodeWithExtra(data, (*plain)(p))
	p.Extra = extra
	return err
}

func (s PromptStrategy) MarshalJSON() ([]byte, error) {
	type plain PromptStrategy
	return encodeWithExtra(plain(s), s.Extra)
}

func (s *PromptStrategy) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain PromptStrategy
	extra, err := decodeWithExtra(data, (*plain)(s))
	s.Extra = extra
	return err
}

func (d DocumentationEntry) MarshalJSON() ([]byte, error) {
	type plain DocumentationEntry
	return encodeWithExtra(plain(d), d.Extra)
}

func (d *DocumentationEntry) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain DocumentationEntry
	extra, err := decodeWithExtra(data, (*plain)(d))
	d.Extra = extra
	return err
}

func (e DocumentationEnrichment) MarshalJSON() ([]byte, error) {
	type plain DocumentationEnrichment
	e.KeyConcepts = orEmpty(e.KeyConcepts)
	e.RelevantFor = orEmpty(e.RelevantFor)
	e.TechStack = orEmpty(e.TechStack)
	e.Tags = orEmpty(e.Tags)
	e.CodePatterns = orEmpty(e.CodePatterns)
	return encodeWithExtra(plain(e), e.Extra)
}

func (e *DocumentationEnrichment) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain DocumentationEnrichment
	extra, err := decodeWithExtra(data, (*plain)(e))
	e.Extra = extra
	return err
}

func (m PreferredModel) MarshalJSON() ([]byte, error) {
	type plain PreferredModel
	return encodeWithExtra(plain(m), m.Extra)
}

func (m *PreferredModel) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain PreferredModel
	extra, err := decodeWithExtra(data, (*plain)(m))
	m.Extra = extra
	return err
}

func (m VersionMetadata) MarshalJSON() ([]byte, error) {
	type plain VersionMetadata
	m.Changelog = orEmpty(m.Changelog)
	return encodeWithExtra(plain(m), m.Extra)
}

func (m *VersionMetadata) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain VersionMetadata
	extra, err := decodeWithExtra(data, (*plain)(m))
	m.Extra = extra
	return err
}

func (c VersionChange) MarshalJSON() ([]byte, error) {
	type plain VersionChange
	c.Changes = orEmpty(c.Changes)
	return encodeWithExtra(plain(c), c.Extra)
}

func (c *VersionChange) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain VersionChange
	extra, err := decodeWithExtra(data, (*plain)(c))
	c.Extra = extra
	return err
}

func (c ChangeEntry) MarshalJSON() ([]byte, error) {
	type plain ChangeEntry
	return encodeWithExtra(plain(c), c.Extra)
}

func (c *ChangeEntry) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain ChangeEntry
	extra, err := decodeWithExtra(data, (*plain)(c))
	c.Extra = extra
	return err
}

func (b BreakingChange) MarshalJSON() ([]byte, error) {
	type plain BreakingChange
	return encodeWithExtra(plain(b), b.Extra)
}

func (b *BreakingChange) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	type plain BreakingChange
	extra, err := decodeWithExtra(data, (*plain)(b))
	b.Extra = extra
	return err
}
