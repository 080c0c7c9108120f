// Package extract pulls documentation from configured sources into an
// ExtractedKnowledge value. Individual source failures are recorded and
// skipped; they never fail the extraction as a whole.
package extract

import (
	"fmt"
	"strings"

	"specforge/internal/template"
)

// Depth controls how much is pulled from each source.
type Depth string

const (
	DepthShallow  Depth = "shallow"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// ParseDepth maps a user-supplied name to a Depth. Empty means standard.
func ParseDepth(s string) (Depth, error) {
	switch Depth(strings.ToLower(strings.TrimSpace(s))) {
	case DepthShallow:
		return DepthShallow, nil
	case DepthStandard, "":
		return DepthStandard, nil
	case DepthDeep:
		return DepthDeep, nil
	default:
		return "", fmt.Errorf("unknown extraction depth %q (valid: shallow, standard, deep)", s)
	}
}

// Limits bound what a single source may contribute.
type Limits struct {
	MaxDocs     int  // documents per source
	MaxBytes    int  // bytes kept per document
	FollowLinks bool // follow llms.txt link lists
}

// Limits returns the per-source limits for the depth.
func (d Depth) Limits() Limits {
	switch d {
	case DepthShallow:
		return Limits{MaxDocs: 3, MaxBytes: 16 << 10}
	case DepthDeep:
		return Limits{MaxDocs: 25, MaxBytes: 256 << 10, FollowLinks: true}
	default:
		return Limits{MaxDocs: 10, MaxBytes: 64 << 10}
	}
}

// Document is one fetched piece of documentation.
type Document struct {
	Source   string // location string the document came from
	Location string // URL or file path of this document
	Title    string
	Type     template.DocType
	Content  string // markdown or plain text
	IsURL    bool
}

// SourceFailure records a source that produced nothing.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// CodeExample is a fenced code block found in documentation.
type CodeExample struct {
	Language string
	Code     string
	Source   string
}

// Capability is a candidate capability tag derived from a section heading.
type Capability struct {
	Tag         string
	Description string
}

// ExtractedKnowledge is the normalized result of an extraction. Its collection
// fields are never nil, even when every source failed.
type ExtractedKnowledge struct {
	Depth        Depth
	Documents    []Document
	Concepts     []string
	TechStack    []string
	Capabilities []Capability
	CodeExamples []CodeExample
	Summary      string
	Failures     []SourceFailure
}

// NewKnowledge returns an empty knowledge value with non-nil collections.
func NewKnowledge(depth Depth) *ExtractedKnowledge {
	return &ExtractedKnowledge{
		Depth:        depth,
		Documents:    []Document{},
		Concepts:     []string{},
		TechStack:    []string{},
		Capabilities: []Capability{},
		CodeExamples: []CodeExample{},
		Failures:     []SourceFailure{},
	}
}

// inferDocType classifies a document by its location.
func inferDocType(location string, official bool) template.DocType {
	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "recipe") || strings.Contains(lower, "cookbook"):
		return template.DocRecipes
	case strings.Contains(lower, "example") || strings.Contains(lower, "sample"):
		return template.DocExamples
	case official:
		return template.DocOfficial
	default:
		return template.DocReference
	}
}
