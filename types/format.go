package types

// TextureAspectFlags is a bitset of texture aspects a format exposes.
// Distinct from TextureAspect (a selector an API call passes in) — this is
// the set of aspects the format itself is made of.
type TextureAspectFlags uint8

const (
	AspectColor TextureAspectFlags = 1 << iota
	AspectDepth
	AspectStencil
)

// ComponentType classifies the numeric interpretation of a format's
// components for shader binding compatibility checks.
type ComponentType uint8

const (
	ComponentFloat ComponentType = iota
	ComponentSint
	ComponentUint
	ComponentDepth
	ComponentStencil
)

// SampleTypeFlags is a bitset of the TextureSampleType values a format may
// be bound with in a texture binding layout.
type SampleTypeFlags uint8

const (
	SampleTypeFloat SampleTypeFlags = 1 << iota
	SampleTypeUnfilterableFloat
	SampleTypeDepth
	SampleTypeSint
	SampleTypeUint
)

// FormatInfo describes the per-aspect metadata Dawn keeps in its format
// table: which aspects the format has, what each aspect's component type
// is, how many components it carries, which sample types it may be bound
// with, and its one-way base<->srgb-view alias (zero value means none).
type FormatInfo struct {
	Format         TextureFormat
	Aspects        TextureAspectFlags
	ComponentType  ComponentType
	ComponentCount uint8
	BlockWidth     uint8
	BlockHeight    uint8
	BlockSize      uint8
	SampleTypes    SampleTypeFlags
	// SRGBViewFormat is the sRGB-encoded counterpart of a non-sRGB format,
	// or Undefined if the format has none.
	SRGBViewFormat TextureFormat
	// BaseViewFormat is the inverse of SRGBViewFormat: set on the sRGB
	// format, pointing back at its non-sRGB base.
	BaseViewFormat TextureFormat
}

var formatTable = buildFormatTable()

func buildFormatTable() map[TextureFormat]FormatInfo {
	t := make(map[TextureFormat]FormatInfo, 96)
	add := func(f FormatInfo) { t[f.Format] = f }

	color1 := func(f TextureFormat, ct ComponentType, bw, bh, bs uint8, st SampleTypeFlags) {
		add(FormatInfo{Format: f, Aspects: AspectColor, ComponentType: ct, ComponentCount: 1, BlockWidth: bw, BlockHeight: bh, BlockSize: bs, SampleTypes: st})
	}
	color2 := func(f TextureFormat, ct ComponentType, bs uint8, st SampleTypeFlags) {
		add(FormatInfo{Format: f, Aspects: AspectColor, ComponentType: ct, ComponentCount: 2, BlockWidth: 1, BlockHeight: 1, BlockSize: bs, SampleTypes: st})
	}
	color4 := func(f TextureFormat, ct ComponentType, bs uint8, st SampleTypeFlags) {
		add(FormatInfo{Format: f, Aspects: AspectColor, ComponentType: ct, ComponentCount: 4, BlockWidth: 1, BlockHeight: 1, BlockSize: bs, SampleTypes: st})
	}

	filterable := SampleTypeFloat | SampleTypeUnfilterableFloat
	unfilterableOnly := SampleTypeUnfilterableFloat

	color1(TextureFormatR8Unorm, ComponentFloat, 1, 1, 1, filterable)
	color1(TextureFormatR8Snorm, ComponentFloat, 1, 1, 1, filterable)
	color1(TextureFormatR8Uint, ComponentUint, 1, 1, 1, SampleTypeUint)
	color1(TextureFormatR8Sint, ComponentSint, 1, 1, 1, SampleTypeSint)

	color1(TextureFormatR16Uint, ComponentUint, 1, 1, 2, SampleTypeUint)
	color1(TextureFormatR16Sint, ComponentSint, 1, 1, 2, SampleTypeSint)
	color1(TextureFormatR16Unorm, ComponentFloat, 1, 1, 2, filterable)
	color1(TextureFormatR16Snorm, ComponentFloat, 1, 1, 2, filterable)
	color1(TextureFormatR16Float, ComponentFloat, 1, 1, 2, filterable)
	color2(TextureFormatRG8Unorm, ComponentFloat, 2, filterable)
	color2(TextureFormatRG8Snorm, ComponentFloat, 2, filterable)
	color2(TextureFormatRG8Uint, ComponentUint, 2, SampleTypeUint)
	color2(TextureFormatRG8Sint, ComponentSint, 2, SampleTypeSint)

	color1(TextureFormatR32Uint, ComponentUint, 1, 1, 4, SampleTypeUint)
	color1(TextureFormatR32Sint, ComponentSint, 1, 1, 4, SampleTypeSint)
	color1(TextureFormatR32Float, ComponentFloat, 1, 1, 4, unfilterableOnly)
	color2(TextureFormatRG16Uint, ComponentUint, 4, SampleTypeUint)
	color2(TextureFormatRG16Sint, ComponentSint, 4, SampleTypeSint)
	color2(TextureFormatRG16Unorm, ComponentFloat, 4, filterable)
	color2(TextureFormatRG16Snorm, ComponentFloat, 4, filterable)
	color2(TextureFormatRG16Float, ComponentFloat, 4, filterable)
	color4(TextureFormatRGBA8Unorm, ComponentFloat, 4, filterable)
	color4(TextureFormatRGBA8UnormSrgb, ComponentFloat, 4, filterable)
	color4(TextureFormatRGBA8Snorm, ComponentFloat, 4, filterable)
	color4(TextureFormatRGBA8Uint, ComponentUint, 4, SampleTypeUint)
	color4(TextureFormatRGBA8Sint, ComponentSint, 4, SampleTypeSint)
	color4(TextureFormatBGRA8Unorm, ComponentFloat, 4, filterable)
	color4(TextureFormatBGRA8UnormSrgb, ComponentFloat, 4, filterable)

	color1(TextureFormatRGB9E5Ufloat, ComponentFloat, 1, 1, 4, filterable)
	color4(TextureFormatRGB10A2Uint, ComponentUint, 4, SampleTypeUint)
	color4(TextureFormatRGB10A2Unorm, ComponentFloat, 4, filterable)
	color1(TextureFormatRG11B10Ufloat, ComponentFloat, 1, 1, 4, filterable)

	color2(TextureFormatRG32Uint, ComponentUint, 8, SampleTypeUint)
	color2(TextureFormatRG32Sint, ComponentSint, 8, SampleTypeSint)
	color2(TextureFormatRG32Float, ComponentFloat, 8, unfilterableOnly)
	color4(TextureFormatRGBA16Uint, ComponentUint, 8, SampleTypeUint)
	color4(TextureFormatRGBA16Sint, ComponentSint, 8, SampleTypeSint)
	color4(TextureFormatRGBA16Unorm, ComponentFloat, 8, filterable)
	color4(TextureFormatRGBA16Snorm, ComponentFloat, 8, filterable)
	color4(TextureFormatRGBA16Float, ComponentFloat, 8, filterable)

	color4(TextureFormatRGBA32Uint, ComponentUint, 16, SampleTypeUint)
	color4(TextureFormatRGBA32Sint, ComponentSint, 16, SampleTypeSint)
	color4(TextureFormatRGBA32Float, ComponentFloat, 16, unfilterableOnly)

	add(FormatInfo{Format: TextureFormatStencil8, Aspects: AspectStencil, ComponentType: ComponentStencil, ComponentCount: 1, BlockWidth: 1, BlockHeight: 1, BlockSize: 1, SampleTypes: SampleTypeUint})
	add(FormatInfo{Format: TextureFormatDepth16Unorm, Aspects: AspectDepth, ComponentType: ComponentDepth, ComponentCount: 1, BlockWidth: 1, BlockHeight: 1, BlockSize: 2, SampleTypes: SampleTypeDepth | unfilterableOnly})
	add(FormatInfo{Format: TextureFormatDepth24Plus, Aspects: AspectDepth, ComponentType: ComponentDepth, ComponentCount: 1, BlockWidth: 1, BlockHeight: 1, BlockSize: 4, SampleTypes: SampleTypeDepth})
	add(FormatInfo{Format: TextureFormatDepth24PlusStencil8, Aspects: AspectDepth | AspectStencil, ComponentType: ComponentDepth, ComponentCount: 1, BlockWidth: 1, BlockHeight: 1, BlockSize: 4, SampleTypes: SampleTypeDepth})
	add(FormatInfo{Format: TextureFormatDepth32Float, Aspects: AspectDepth, ComponentType: ComponentDepth, ComponentCount: 1, BlockWidth: 1, BlockHeight: 1, BlockSize: 4, SampleTypes: SampleTypeDepth | unfilterableOnly})
	add(FormatInfo{Format: TextureFormatDepth32FloatStencil8, Aspects: AspectDepth | AspectStencil, ComponentType: ComponentDepth, ComponentCount: 1, BlockWidth: 1, BlockHeight: 1, BlockSize: 5, SampleTypes: SampleTypeDepth | unfilterableOnly})

	linkSRGB(t, TextureFormatRGBA8Unorm, TextureFormatRGBA8UnormSrgb)
	linkSRGB(t, TextureFormatBGRA8Unorm, TextureFormatBGRA8UnormSrgb)

	for _, bc := range []struct{ base, srgb TextureFormat }{
		{TextureFormatBC1RGBAUnorm, TextureFormatBC1RGBAUnormSrgb},
		{TextureFormatBC2RGBAUnorm, TextureFormatBC2RGBAUnormSrgb},
		{TextureFormatBC3RGBAUnorm, TextureFormatBC3RGBAUnormSrgb},
		{TextureFormatBC7RGBAUnorm, TextureFormatBC7RGBAUnormSrgb},
		{TextureFormatETC2RGB8Unorm, TextureFormatETC2RGB8UnormSrgb},
		{TextureFormatETC2RGB8A1Unorm, TextureFormatETC2RGB8A1UnormSrgb},
		{TextureFormatETC2RGBA8Unorm, TextureFormatETC2RGBA8UnormSrgb},
	} {
		add(FormatInfo{Format: bc.base, Aspects: AspectColor, ComponentType: ComponentFloat, ComponentCount: 4, BlockWidth: 4, BlockHeight: 4, BlockSize: 8, SampleTypes: filterable})
		add(FormatInfo{Format: bc.srgb, Aspects: AspectColor, ComponentType: ComponentFloat, ComponentCount: 4, BlockWidth: 4, BlockHeight: 4, BlockSize: 8, SampleTypes: filterable})
		linkSRGB(t, bc.base, bc.srgb)
	}

	return t
}

func linkSRGB(t map[TextureFormat]FormatInfo, base, srgb TextureFormat) {
	b := t[base]
	b.SRGBViewFormat = srgb
	t[base] = b
	s := t[srgb]
	s.BaseViewFormat = base
	t[srgb] = s
}

// GetFormat returns the per-aspect metadata for a texture format, or
// ok == false if the format is not (yet) represented in the table.
func GetFormat(format TextureFormat) (FormatInfo, bool) {
	info, ok := formatTable[format]
	return info, ok
}

// IsDepthOrStencil reports whether the format carries a depth and/or
// stencil aspect.
func (f FormatInfo) IsDepthOrStencil() bool {
	return f.Aspects&(AspectDepth|AspectStencil) != 0
}

// SupportsSampleType reports whether the format may be bound with the
// given texture sample type.
func (f FormatInfo) SupportsSampleType(st TextureSampleType) bool {
	switch st {
	case TextureSampleTypeFloat:
		return f.SampleTypes&SampleTypeFloat != 0
	case TextureSampleTypeUnfilterableFloat:
		return f.SampleTypes&(SampleTypeFloat|SampleTypeUnfilterableFloat) != 0
	case TextureSampleTypeDepth:
		return f.SampleTypes&SampleTypeDepth != 0
	case TextureSampleTypeSint:
		return f.SampleTypes&SampleTypeSint != 0
	case TextureSampleTypeUint:
		return f.SampleTypes&SampleTypeUint != 0
	}
	return false
}
