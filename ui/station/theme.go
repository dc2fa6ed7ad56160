package station

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// Status colors shared by the theme and the dashboard.
var (
	colorSuccess = color.NRGBA{R: 0x2E, G: 0x7D, B: 0x32, A: 0xFF}
	colorLapse   = color.NRGBA{R: 0xC6, G: 0x28, B: 0x28, A: 0xFF}
	colorFlag    = color.NRGBA{R: 0xEF, G: 0x6C, B: 0x00, A: 0xFF}
)

// StationTheme enlarges text for a touch screen next to the scanner.
type StationTheme struct{}

var _ fyne.Theme = (*StationTheme)(nil)

func (t *StationTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return colorSuccess
	case theme.ColorNameError:
		return colorLapse
	case theme.ColorNameWarning:
		return colorFlag
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *StationTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *StationTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *StationTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 16
	case theme.SizeNameHeadingText:
		return 28
	case theme.SizeNameInputBorder:
		return 2
	default:
		return theme.DefaultTheme().Size(name)
	}
}
