package geo

// Static lookup tables for German administrative geography. Pure data,
// loaded once at startup and never reconstructed per call.

// provinceShortCodes maps province names as reported by geolocation
// services to their two-letter Bundesland codes.
var provinceShortCodes = map[string]string{
	"Baden-Wurttemberg":      "BW",
	"Bavaria":                "BY",
	"Berlin":                 "BE",
	"Brandenburg":            "BB",
	"Bremen":                 "HB",
	"Hamburg":                "HH",
	"Hessen":                 "HE",
	"Mecklenburg-Vorpommern": "MV",
	"Niedersachsen":          "NI",
	"Nordrhein-Westfalen":    "NW",
	"Rheinland-Pfalz":        "RP",
	"Saarland":               "SL",
	"Sachsen":                "SN",
	"Sachsen-Anhalt":         "ST",
	"Schleswig-Holstein":     "SH",
	"Thuringen":              "TH",
}

// provinceRegions maps Bundesland codes to GrippeWeb survey regions.
var provinceRegions = map[string]string{
	"BW": "Sueden",
	"BY": "Sueden",
	"BE": "Mitte (West)",
	"BB": "Osten",
	"HB": "Norden (West)",
	"HH": "Norden (West)",
	"HE": "Mitte (West)",
	"MV": "Osten",
	"NI": "Norden (West)",
	"NW": "Mitte (West)",
	"RP": "Mitte (West)",
	"SL": "Mitte (West)",
	"SN": "Osten",
	"ST": "Osten",
	"SH": "Norden (West)",
	"TH": "Osten",
}

// admin1Provinces maps GeoNames DE admin1 codes to Bundesland codes, so a
// reverse-geocoded place can be mapped straight to its province.
var admin1Provinces = map[string]string{
	"01": "BW",
	"02": "BY",
	"03": "HB",
	"04": "HH",
	"05": "HE",
	"06": "NI",
	"07": "NW",
	"08": "RP",
	"09": "SL",
	"10": "SH",
	"11": "BB",
	"12": "MV",
	"13": "SN",
	"14": "ST",
	"15": "TH",
	"16": "BE",
}

// ShortForProvince maps a province name to its Bundesland code.
func ShortForProvince(name string) (string, bool) {
	code, ok := provinceShortCodes[name]
	return code, ok
}

// RegionForProvince maps a Bundesland code to its survey region.
func RegionForProvince(short string) (string, bool) {
	region, ok := provinceRegions[short]
	return region, ok
}

// ProvinceForAdmin1 maps a GeoNames DE admin1 code to a Bundesland code.
func ProvinceForAdmin1(admin1 string) (string, bool) {
	code, ok := admin1Provinces[admin1]
	return code, ok
}

// ProvinceNameForShort is the inverse of ShortForProvince.
func ProvinceNameForShort(short string) (string, bool) {
	for name, code := range provinceShortCodes {
		if code == short {
			return name, true
		}
	}
	return "", false
}
