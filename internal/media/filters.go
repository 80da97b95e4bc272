package media

import (
	"slices"
	"strings"
)

// filterGraphs maps filter names to ffmpeg video filter chains.
var filterGraphs = map[string]string{
	"sepia":    "colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131",
	"mono":     "hue=s=0",
	"noir":     "hue=s=0,eq=contrast=1.4:brightness=-0.05",
	"invert":   "negate",
	"vignette": "vignette=PI/4",
	"blur":     "gblur=sigma=6",
	"sharpen":  "unsharp=5:5:1.2:5:5:0.0",
	"warm":     "colorbalance=rs=.12:gs=.03:bs=-.1",
	"cool":     "colorbalance=rs=-.1:gs=.02:bs=.12",
}

// filterAliases accepts the Core Image names clients commonly send.
var filterAliases = map[string]string{
	"cisepiatone":        "sepia",
	"ciphotoeffectmono":  "mono",
	"ciphotoeffectnoir":  "noir",
	"cicolorinvert":      "invert",
	"civignette":         "vignette",
	"cigaussianblur":     "blur",
	"cisharpenluminance": "sharpen",
}

// LookupFilter resolves a filter name, case-insensitively and including
// aliases, to its ffmpeg filter chain.
func LookupFilter(name string) (graph string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, found := filterAliases[key]; found {
		key = alias
	}
	graph, ok = filterGraphs[key]
	return graph, ok
}

// FilterNames returns the canonical filter names in sorted order.
func FilterNames() []string {
	names := make([]string, 0, len(filterGraphs))
	for name := range filterGraphs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// transitions lists the xfade transitions offered for animated merges.
var transitions = []string{
	"fade", "fadeblack", "fadewhite", "dissolve", "distance",
	"wipeleft", "wiperight", "wipeup", "wipedown",
	"slideleft", "slideright", "slideup", "slidedown",
	"smoothleft", "smoothright", "smoothup", "smoothdown",
	"circlecrop", "rectcrop", "circleopen", "circleclose",
	"radial", "pixelize", "zoomin",
}

// IsTransition reports whether name is a supported xfade transition.
func IsTransition(name string) bool {
	return slices.Contains(transitions, name)
}
