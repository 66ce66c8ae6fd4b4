package app

import (
	"image/color"
	"math"
)

// ColorTheme represents a predefined color scheme for altitude visualization.
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white
	EnhancedTheme  ColorTheme = "enhanced"  // Blue to cyan to yellow to red

	DefaultColorMapSize = 256 // Default number of colors in the map
)

var validThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	JungleTheme:    {},
	ThermalTheme:   {},
	MarineTheme:    {},
	EnhancedTheme:  {},
}

// AltitudeBounds is the altitude range in feet covered by a color map.
type AltitudeBounds struct {
	Min float64
	Max float64
}

// ColorMapper maps altitudes to pre-computed theme colors.
type ColorMapper struct {
	colorMap     []color.Color
	theme        func(float64) color.Color
	themeName    ColorTheme
	size         int
	feetPerIndex float64
	boundsMin    float64
}

// NewColorMapper creates a color mapper with the default size.
func NewColorMapper(theme ColorTheme, bounds AltitudeBounds) *ColorMapper {
	return NewColorMapperWithSize(theme, bounds, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a color mapper holding size colors.
func NewColorMapperWithSize(theme ColorTheme, bounds AltitudeBounds, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}

	cm := &ColorMapper{
		colorMap:  make([]color.Color, size),
		theme:     getColorTheme(theme),
		themeName: theme,
		size:      size,
	}
	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds sets the altitude range and rebuilds the color map.
func (cm *ColorMapper) UpdateBounds(bounds AltitudeBounds) {
	cm.boundsMin = bounds.Min
	cm.feetPerIndex = (bounds.Max - bounds.Min) / float64(cm.size-1)

	for i := 0; i < cm.size; i++ {
		normalized := float64(i) / float64(cm.size-1)
		cm.colorMap[i] = cm.theme(normalized)
	}
}

// GetColor returns the color of an altitude. A flight that never changed
// altitude is drawn in the middle of the map.
func (cm *ColorMapper) GetColor(altitude float64) color.Color {
	if cm.feetPerIndex <= 0 || math.IsNaN(altitude) {
		return cm.colorMap[cm.size/2]
	}

	index := int((altitude - cm.boundsMin) / cm.feetPerIndex)
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= cm.size {
		return cm.colorMap[cm.size-1]
	}
	return cm.colorMap[index]
}

// At returns the color at a normalized position in [0, 1].
func (cm *ColorMapper) At(normalized float64) color.Color {
	index := int(math.Round(normalized * float64(cm.size-1)))
	return cm.colorMap[max(0, min(cm.size-1, index))]
}

// ThemeName returns the current color theme name
func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

// Size returns the color map size
func (cm *ColorMapper) Size() int {
	return cm.size
}

// HSV represents a color in HSV (Hue, Saturation, Value) color space
type HSV struct {
	H float64 // Hue angle in degrees [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value/Brightness [0-1]
}

// RGB converts HSV to RGB color space
func (hsv HSV) RGB() color.Color {
	if hsv.S <= 0.0 {
		v := uint8(hsv.V * 255)
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}

	h := math.Mod(hsv.H, 360)
	if h < 0 {
		h += 360
	}
	h /= 60

	i := int(h)
	f := h - float64(i)

	v := uint8(hsv.V * 255)
	p := uint8((hsv.V * (1 - hsv.S)) * 255)
	q := uint8((hsv.V * (1 - (hsv.S * f))) * 255)
	t := uint8((hsv.V * (1 - (hsv.S * (1 - f)))) * 255)

	switch i {
	case 0:
		return color.RGBA{R: v, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: v, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: v, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: v, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: v, A: 255}
	default: // case 5:
		return color.RGBA{R: v, G: p, B: q, A: 255}
	}
}

func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme:
		return func(alt float64) color.Color {
			return HSV{
				H: 240 - (alt * 240),
				S: 0.9 + (alt * 0.1),
				V: 0.4 + math.Pow(alt, 0.7)*0.6,
			}.RGB()
		}

	case GrayscaleTheme:
		return func(alt float64) color.Color {
			v := uint8(math.Pow(alt, 0.7) * 200)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}

	case JungleTheme:
		return func(alt float64) color.Color {
			return HSV{
				H: 120 - (alt * 60),
				S: 1.0,
				V: 0.3 + (math.Pow(alt, 0.6) * 0.7),
			}.RGB()
		}

	case ThermalTheme:
		return func(alt float64) color.Color {
			if alt < 0.33 {
				return color.RGBA{
					R: uint8((alt * 3) * 255),
					A: 255,
				}
			}
			if alt < 0.66 {
				return color.RGBA{
					R: 255,
					G: uint8(((alt - 0.33) * 3) * 255),
					A: 255,
				}
			}
			return color.RGBA{
				R: 255,
				G: 255,
				B: uint8(math.Min(1, (alt-0.66)*3) * 255),
				A: 255,
			}
		}

	case MarineTheme:
		return func(alt float64) color.Color {
			return HSV{
				H: 240 - (alt * 60),
				S: 1.0 - (alt * 0.8),
				V: 0.3 + (math.Pow(alt, 0.6) * 0.7),
			}.RGB()
		}

	default:
		return func(alt float64) color.Color {
			alt = math.Max(0, math.Min(1, alt))

			switch {
			case alt < 0.33:
				return HSV{
					H: 240 - (alt * 3 * 60),
					S: 1.0,
					V: 0.8,
				}.RGB()
			case alt < 0.66:
				p := (alt - 0.33) * 3
				return HSV{
					H: 180 - (p * 120),
					S: 1.0,
					V: 0.9,
				}.RGB()
			default:
				p := math.Min(1, (alt-0.66)*3)
				return HSV{
					H: 60 - (p * 60),
					S: 1.0,
					V: 1.0,
				}.RGB()
			}
		}
	}
}
