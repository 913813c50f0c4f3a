// Package domain models remote-sensing indicators for a region and two time
// windows: the historical baseline and the current period.
//
// # Data Sources
//
// Three collections feed the default variables:
//
//	Sentinel-2 L2A surface reflectance (COPERNICUS/S2_SR_HARMONIZED)
//	  Bands B8 (NIR), B4 (red), B3 (green), B2 (blue), SCL (scene classification).
//	  Reflectance is stored as integers scaled by 10000.
//	MODIS land-surface temperature, 8-day (MODIS/061/MOD11A2)
//	  Band LST_Day_1km in Kelvin scaled by 50 (gain 0.02).
//	GPM IMERG precipitation (NASA/GPM_L3/IMERG_V06)
//	  Band precipitationCal, mm per step; summed over a window.
//
// The mapping from logical band names (NIR, RED, ...) to platform band ids is a
// [BandSet] and is loaded from the catalog file, never hard-coded at call sites.
//
// # Quality Masking
//
// Two strategies remove cloud-contaminated pixels:
//
//	Bitmask (QA60):      keep iff bit 10 (opaque cloud) and bit 11 (cirrus) are 0.
//	Class code (SCL):    keep iff class ∈ {4 vegetation, 5 bare soil, 6 water, 11 snow}.
//
// # Indices
//
//	NDVI   = (NIR − RED) / (NIR + RED)
//	Floral = (GREEN − RED) / (GREEN + RED)
//	EVI    = G·(NIR − RED) / (NIR + C1·RED − C2·BLUE + L),  G=2.5 L=1 C1=6 C2=7.5
//	LST °C = THERMAL·0.02 − 273.15
//	Relative precipitation change = (current − historic) / (historic + 1e-6)
//
// Formulas are typed expression trees ([Expr]); nothing is parsed from text.
//
// # Unavailable Values
//
// A region or window with no cloud-free pixels is an expected outcome. Such
// values are carried as an unavailable [Value] that marshals to JSON null and
// classifies as [LabelUnavailable]. Zero is a valid measurement (no rain) and is
// never used as a stand-in.
//
// # Classification
//
// Each table is tested in ascending order with value < threshold, so a value
// equal to a threshold falls into the higher bucket:
//
//	NDVI:           <0.1 bare | <0.3 sparse | <0.6 moderate | ≥0.6 dense
//	Floral:         <−0.1 foliage | <0.1 mixed | ≥0.1 bloom
//	LST (°C):       <10 cold | <25 mild | <35 warm | ≥35 hot
//	Precipitation:  <1 negligible | <10 low | <50 moderate | ≥50 high
//
// Change tables are two-sided (high, low) magnitude pairs:
//
//	vegetation 0.1/0.02, temperature 2/0.5, relative precipitation 0.5/0.1
package domain
