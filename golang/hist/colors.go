package hist

import "strings"

//Colors maps the palette names used in analysis configurations to hex codes.
var Colors = map[string]string{
	"blue":     "#3f90da",
	"b":        "#3f90da",
	"yellow":   "#ffa90e",
	"y":        "#ffa90e",
	"red":      "#bd1f01",
	"r":        "#bd1f01",
	"grey":     "#94a4a2",
	"gray":     "#94a4a2",
	"purple":   "#832db6",
	"brown":    "#a96b59",
	"orange":   "#e76300",
	"tan":      "#b9ac70",
	"darkgrey": "#717581",
	"skyblue":  "#92dadd",
	"black":    "#000000",
	"k":        "#000000",
}

//ResolveColor returns hex codes unchanged and looks names up in Colors.
//Unknown names fall back to black.
func ResolveColor(c string) string {
	if strings.HasPrefix(c, "#") {
		return c
	}
	if hex, ok := Colors[c]; ok {
		return hex
	}
	return Colors["k"]
}
