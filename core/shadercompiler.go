package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/wgpucore/hal"
)

// NagaShaderCompiler implements hal.ShaderCompiler on top of naga, the same
// WGSL front end the teacher's Metal, D3D12 and GLES backends use to turn
// WGSL into their native IR before cross-compiling to MSL/HLSL/GLSL. The
// device core only needs the front half of that pipeline — parse, lower,
// list entry points — since backend codegen is out of scope here.
type NagaShaderCompiler struct{}

// NewNagaShaderCompiler returns the naga-backed ShaderCompiler.
func NewNagaShaderCompiler() *NagaShaderCompiler {
	return &NagaShaderCompiler{}
}

// nagaModule adapts *ir.Module to hal.Module.
type nagaModule struct {
	ir *ir.Module
}

func (m *nagaModule) EntryPoints() []string {
	names := make([]string, 0, len(m.ir.EntryPoints))
	for _, ep := range m.ir.EntryPoints {
		names = append(names, ep.Name)
	}
	return names
}

// CompileWGSL parses and lowers WGSL source via naga, exactly the
// Parse→LowerWithSource sequence the Metal backend uses ahead of its own
// MSL codegen. naga's public Parse/Lower surface reports failures as a
// single error rather than a structured diagnostic list, so a failed
// compile is surfaced as one SeverityError diagnostic spanning the whole
// source; a successful compile currently has no warnings to report since
// naga does not expose them at this layer.
func (c *NagaShaderCompiler) CompileWGSL(source string, allowedExtensions []string) (hal.Module, []hal.Diagnostic, error) {
	if diag, err := checkEnableDirectives(source, allowedExtensions); err != nil {
		return nil, []hal.Diagnostic{diag}, err
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, []hal.Diagnostic{sourceErrorDiagnostic(source, err)}, fmt.Errorf("wgpucore: WGSL parse error: %w", err)
	}

	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, []hal.Diagnostic{sourceErrorDiagnostic(source, err)}, fmt.Errorf("wgpucore: WGSL lower error: %w", err)
	}

	return &nagaModule{ir: module}, nil, nil
}

// checkEnableDirectives does front-end validation of a WGSL module's
// `enable <extension>;` directives against the set the caller allows,
// ahead of handing the source to naga. naga's Parse/Lower pair (as used by
// every teacher backend) has no parameter for this, so it is enforced here
// rather than passed through.
func checkEnableDirectives(source string, allowedExtensions []string) (hal.Diagnostic, error) {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[ext] = true
	}

	for lineNum, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "enable ") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(trimmed, "enable ")), ";")
		if !allowed[name] {
			return hal.Diagnostic{
				Severity:   hal.SeverityError,
				Message:    fmt.Sprintf("extension %q is not enabled for this device", name),
				LineNumber: uint32(lineNum + 1),
				LinePos:    1,
			}, fmt.Errorf("wgpucore: disallowed WGSL extension %q", name)
		}
	}
	return hal.Diagnostic{}, nil
}

// sourceErrorDiagnostic wraps a naga parse/lower error as a single
// whole-source diagnostic. naga's error values carry no span of their own
// at this API surface, so the diagnostic runs from line 1, column 1 to the
// last line of source, and Offset/Length are left zero; callers that
// need UTF-16 offsets run ConvertDiagnosticsToUTF16 regardless, which
// passes a zero-length span through unchanged.
func sourceErrorDiagnostic(source string, err error) hal.Diagnostic {
	lines := uint32(strings.Count(source, "\n")) + 1
	return hal.Diagnostic{
		Severity:      hal.SeverityError,
		Message:       err.Error(),
		LineNumber:    1,
		LinePos:       1,
		LineNumberEnd: lines,
	}
}

// ConvertDiagnosticsToUTF16 converts every diagnostic's UTF-8 byte offset
// and length, computed against source, to UTF-16 code-unit equivalents per
// the conversion table in spec §6: code points up to 0xD7FF and from
// 0xE000 to 0xFFFF cost one UTF-16 code unit, code points at or above
// 0x10000 cost two (surrogate pair), and any code point in the surrogate
// range 0xD800-0xDFFF is illegal UTF-8 and fails the conversion outright.
//
// Diagnostics are assumed to carry byte offsets (Offset, Length) into
// source; LineNumber/LinePos are left untouched since line/column counting
// is not redefined by UTF-16 conversion, only the intra-line code-unit
// count is.
func ConvertDiagnosticsToUTF16(source string, diags []hal.Diagnostic) ([]hal.Diagnostic, error) {
	table, err := utf8ByteToUTF16Table(source)
	if err != nil {
		return nil, err
	}

	out := make([]hal.Diagnostic, len(diags))
	for i, d := range diags {
		out[i] = d
		if int(d.Offset) <= len(table) {
			out[i].Offset = table[d.Offset]
		}
		end := d.Offset + d.Length
		if int(end) <= len(table) {
			out[i].Length = table[end] - out[i].Offset
		}
	}
	return out, nil
}

// CompileShaderModule runs compile_wgsl (spec §6) against the device's
// shader compiler, converts every diagnostic's offsets to UTF-16 per the
// same section, and feeds warnings and errors through EmitCompilationLog
// so they participate in the device's rate limiting. A compile failure is
// reported as a Validation error through ConsumeError rather than
// returned directly, matching how every other front-end contract
// violation is routed in this device core.
func (d *Device) CompileShaderModule(label, source string, allowedExtensions []string) (hal.Module, error) {
	if d.shaderCompiler == nil {
		d.shaderCompiler = NewNagaShaderCompiler()
	}

	module, diags, compileErr := d.shaderCompiler.CompileWGSL(source, allowedExtensions)

	utf16Diags, convErr := ConvertDiagnosticsToUTF16(source, diags)
	if convErr != nil {
		utf16Diags = diags
	}
	for _, diag := range utf16Diags {
		d.EmitCompilationLog(diagnosticToLogLevel(diag.Severity), formatDiagnostic(label, diag))
	}

	if compileErr != nil {
		d.ConsumeError(NewValidationErrorf("ShaderModule", "source", "%s: %v", label, compileErr), 0)
		return nil, compileErr
	}
	return module, nil
}

func diagnosticToLogLevel(sev hal.DiagnosticSeverity) LogLevel {
	switch sev {
	case hal.SeverityWarning:
		return LogWarning
	case hal.SeverityError:
		return LogError
	default:
		return LogInfo
	}
}

func formatDiagnostic(label string, d hal.Diagnostic) string {
	if label == "" {
		return fmt.Sprintf("%d:%d: %s", d.LineNumber, d.LinePos, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", label, d.LineNumber, d.LinePos, d.Message)
}

// utf8ByteToUTF16Table returns, for every valid UTF-8 byte offset in src
// (including the one-past-the-end offset), the UTF-16 code-unit offset it
// corresponds to.
func utf8ByteToUTF16Table(src string) ([]uint32, error) {
	table := make([]uint32, len(src)+1)
	units := uint32(0)
	i := 0
	for i < len(src) {
		table[i] = units
		cp, size := utf8.DecodeRuneInString(src[i:])
		if cp == utf8.RuneError && size <= 1 {
			return nil, fmt.Errorf("wgpucore: invalid UTF-8 at byte offset %d", i)
		}
		if cp >= 0xD800 && cp <= 0xDFFF {
			return nil, fmt.Errorf("wgpucore: illegal surrogate code point U+%04X at byte offset %d", cp, i)
		}
		if cp >= 0x10000 {
			units += 2
		} else {
			units++
		}
		i += size
	}
	table[len(src)] = units
	return table, nil
}
