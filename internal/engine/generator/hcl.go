package generator

import (
	"bufio"
	"bytes"
	"errors"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/opencontainers/go-digest"
	"github.com/zclconf/go-cty/cty"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	generatedMarker  = "# Code generated by lpkg. DO NOT EDIT."
	headerRecordHash = "record-hash"
	headerSchema     = "schema-version"
	headerBodyDigest = "body-digest"
)

// artifactFile is the decoding schema of a build.hcl file.
type artifactFile struct {
	Package      packageBlock    `hcl:"package,block"`
	Sources      []sourceBlock   `hcl:"source,block"`
	Checksums    []checksumBlock `hcl:"checksum,block"`
	Dependencies []string        `hcl:"dependencies,optional"`
	Flags        flagsBlock      `hcl:"flags,block"`
	Phases       []phaseBlock    `hcl:"phase,block"`
	Remain       hcl.Body        `hcl:",remain"`
}

type packageBlock struct {
	ID      string `hcl:"id"`
	Name    string `hcl:"name"`
	Version string `hcl:"version"`
	Variant string `hcl:"variant,optional"`
	Stage   string `hcl:"stage,optional"`
}

type sourceBlock struct {
	URL  string `hcl:"url"`
	Kind string `hcl:"kind"`
}

type checksumBlock struct {
	Alg   string `hcl:"alg"`
	File  string `hcl:"file"`
	Value string `hcl:"value"`
}

type flagsBlock struct {
	LTO      bool     `hcl:"lto,optional"`
	PGO      bool     `hcl:"pgo,optional"`
	Level    string   `hcl:"level,optional"`
	CFlags   []string `hcl:"cflags,optional"`
	LDFlags  []string `hcl:"ldflags,optional"`
	Profdata string   `hcl:"profdata,optional"`
}

type phaseBlock struct {
	Kind         string   `hcl:"kind,label"`
	Cwd          string   `hcl:"cwd,optional"`
	RequiresRoot bool     `hcl:"requires_root,optional"`
	Commands     []string `hcl:"commands"`
}

// Encode renders a definition as a complete artifact: the provenance header followed by
// the formatted HCL body. The body digest of def.Header is filled in.
func Encode(def *domain.BuildDefinition) []byte {
	body := encodeBody(def)
	def.Header.BodyDigest = digest.FromBytes(body).String()

	var buf bytes.Buffer
	buf.WriteString(generatedMarker + "\n")
	buf.WriteString("# " + headerRecordHash + ": " + def.Header.RecordHash + "\n")
	buf.WriteString("# " + headerSchema + ": " + def.Header.SchemaVersion + "\n")
	buf.WriteString("# " + headerBodyDigest + ": " + def.Header.BodyDigest + "\n")
	buf.WriteString("\n")
	buf.Write(body)
	return buf.Bytes()
}

func encodeBody(def *domain.BuildDefinition) []byte {
	f := hclwrite.NewFile()
	root := f.Body()

	pkg := root.AppendNewBlock("package", nil).Body()
	pkg.SetAttributeValue("id", cty.StringVal(def.ID))
	pkg.SetAttributeValue("name", cty.StringVal(def.Name))
	pkg.SetAttributeValue("version", cty.StringVal(def.Version))
	if def.Variant != "" {
		pkg.SetAttributeValue("variant", cty.StringVal(def.Variant))
	}
	if def.Stage != "" {
		pkg.SetAttributeValue("stage", cty.StringVal(def.Stage))
	}

	for _, src := range def.Sources {
		root.AppendNewline()
		b := root.AppendNewBlock("source", nil).Body()
		b.SetAttributeValue("url", cty.StringVal(src.URL))
		b.SetAttributeValue("kind", cty.StringVal(string(src.Kind)))
	}

	for _, sum := range def.Checksums {
		root.AppendNewline()
		b := root.AppendNewBlock("checksum", nil).Body()
		b.SetAttributeValue("alg", cty.StringVal(sum.Alg))
		b.SetAttributeValue("file", cty.StringVal(sum.File))
		b.SetAttributeValue("value", cty.StringVal(sum.Value))
	}

	root.AppendNewline()
	root.SetAttributeValue("dependencies", stringList(def.Dependencies))

	root.AppendNewline()
	flags := root.AppendNewBlock("flags", nil).Body()
	flags.SetAttributeValue("lto", cty.BoolVal(def.Flags.LTO))
	flags.SetAttributeValue("pgo", cty.BoolVal(def.Flags.PGO))
	flags.SetAttributeValue("level", cty.StringVal(def.Flags.Level))
	flags.SetAttributeValue("cflags", stringList(def.Flags.CFlags))
	flags.SetAttributeValue("ldflags", stringList(def.Flags.LDFlags))
	if def.Flags.Profdata != "" {
		flags.SetAttributeValue("profdata", cty.StringVal(def.Flags.Profdata))
	}

	for _, phase := range def.Phases {
		root.AppendNewline()
		b := root.AppendNewBlock("phase", []string{string(phase.Kind)}).Body()
		if phase.Cwd != "" {
			b.SetAttributeValue("cwd", cty.StringVal(phase.Cwd))
		}
		if phase.RequiresRoot {
			b.SetAttributeValue("requires_root", cty.True)
		}
		b.SetAttributeValue("commands", stringList(phase.Commands))
	}

	return hclwrite.Format(f.Bytes())
}

func stringList(values []string) cty.Value {
	if len(values) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(values))
	for i, v := range values {
		vals[i] = cty.StringVal(v)
	}
	return cty.ListVal(vals)
}

// splitHeader separates the provenance header from the body. ok is false when the
// content does not start with the generated marker.
func splitHeader(content []byte) (header domain.ArtifactHeader, body []byte, ok bool) {
	r := bufio.NewReader(bytes.NewReader(content))
	first, err := r.ReadString('\n')
	if err != nil || strings.TrimRight(first, "\n") != generatedMarker {
		return header, content, false
	}
	offset := len(first)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return header, content, false
		}
		offset += len(line)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			break
		}
		key, value, found := strings.Cut(strings.TrimPrefix(line, "# "), ": ")
		if !found {
			return header, content, false
		}
		switch key {
		case headerRecordHash:
			header.RecordHash = value
		case headerSchema:
			header.SchemaVersion = value
		case headerBodyDigest:
			header.BodyDigest = value
		}
	}

	if header.BodyDigest == "" {
		return header, content, false
	}
	return header, content[offset:], true
}

// Decode parses an artifact produced by Encode.
func Decode(filename string, content []byte) (*domain.BuildDefinition, error) {
	header, body, ok := splitHeader(content)
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrArtifactDecodeFailed, "artifact has no generated header"), "path", filename)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(body, filename)
	if diags.HasErrors() {
		return nil, zerr.With(errors.Join(domain.ErrArtifactDecodeFailed, diags), "path", filename)
	}

	var af artifactFile
	if diags := gohcl.DecodeBody(file.Body, nil, &af); diags.HasErrors() {
		return nil, zerr.With(errors.Join(domain.ErrArtifactDecodeFailed, diags), "path", filename)
	}

	def := &domain.BuildDefinition{
		ID:           af.Package.ID,
		Name:         af.Package.Name,
		Version:      af.Package.Version,
		Variant:      af.Package.Variant,
		Stage:        af.Package.Stage,
		Dependencies: af.Dependencies,
		Flags: domain.BuildFlags{
			LTO:      af.Flags.LTO,
			PGO:      af.Flags.PGO,
			Level:    af.Flags.Level,
			CFlags:   af.Flags.CFlags,
			LDFlags:  af.Flags.LDFlags,
			Profdata: af.Flags.Profdata,
		},
		Header: header,
	}
	for _, src := range af.Sources {
		def.Sources = append(def.Sources, domain.SourceURL{URL: src.URL, Kind: domain.URLKind(src.Kind)})
	}
	for _, sum := range af.Checksums {
		def.Checksums = append(def.Checksums, domain.Checksum{Alg: sum.Alg, File: sum.File, Value: sum.Value})
	}
	for _, p := range af.Phases {
		kind := domain.PhaseKind(p.Kind)
		if !kind.Valid() {
			err := zerr.With(zerr.Wrap(domain.ErrArtifactDecodeFailed, "unknown phase"), "path", filename)
			return nil, zerr.With(err, "phase", p.Kind)
		}
		def.Phases = append(def.Phases, domain.Phase{
			Kind:         kind,
			Cwd:          p.Cwd,
			RequiresRoot: p.RequiresRoot,
			Commands:     p.Commands,
		})
	}
	return def, nil
}
