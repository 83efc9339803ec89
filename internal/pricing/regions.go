package pricing

import (
	"strings"

	"github.com/homegrubhub/homegrubhub-be/internal/postcode"
)

// Regional price variation by postcode area, relative to the UK average.
var regionalFactors = map[string]float64{
	// London and the South East
	"sw": 1.25, "se": 1.20, "w": 1.30, "wc": 1.35, "ec": 1.30, "e": 1.15, "n": 1.15, "nw": 1.20,
	// Southern England
	"rh": 1.15, "tn": 1.15, "me": 1.15, "ct": 1.15, "bn": 1.15, "po": 1.10, "so": 1.10,
	// Midlands
	"b": 1.05, "cv": 1.05, "le": 1.05, "nn": 1.05, "mk": 1.05, "ox": 1.15,
	// Northern England
	"m": 0.95, "l": 0.95, "s": 0.95, "hd": 0.95, "ls": 0.95, "yo": 0.95,
	// Scotland
	"g": 1.00, "eh": 1.05, "ab": 1.10, "dd": 0.95,
	// Wales
	"cf": 0.95, "sa": 0.90, "ll": 0.90, "sy": 0.90,
	// Northern Ireland
	"bt": 0.90,
}

// RegionArea returns the lowercased postcode area, or "uk" when unknown.
func RegionArea(pc string) string {
	if area := postcode.Area(pc); area != "" {
		return strings.ToLower(area)
	}
	return "uk"
}

// RegionalFactor returns the price multiplier for the area of pc.
func RegionalFactor(pc string) float64 {
	if f, ok := regionalFactors[RegionArea(pc)]; ok {
		return f
	}
	return 1.0
}
