package detection

import "strings"

// GroundTruth maps a source file name ("1.jfif") to the text it contains.
type GroundTruth map[string]string

// Lookup returns the ground truth for key. Missing and empty entries both
// report ok=false.
func (g GroundTruth) Lookup(key string) (*string, bool) {
	text, ok := g[key]
	if !ok || text == "" {
		return nil, false
	}
	return &text, true
}

// Clone returns an independent copy of g.
func (g GroundTruth) Clone() GroundTruth {
	out := make(GroundTruth, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

// DefaultGroundTruth returns the bundled validation dataset: license plates,
// expiry dates, street addresses, greeting cards and road signs.
func DefaultGroundTruth() GroundTruth {
	return GroundTruth{
		"1.jfif":  "PureMichigan DNJ 0955",
		"2.jfif":  "EXP:040917",
		"3.jfif":  "Exp. date: 02-2023",
		"4.jfif":  "EXP 06.10.2016",
		"7.jfif":  "Illinois 977 4224",
		"10.jfif": "California 5XOR829",
		"11.jfif": "2120 MIDLAKE DRIVE",
		"12.jfif": "2190 ORCHARD RIDGE",
		"13.jfif": "1027 Brooks Road The Oliver's",
		"14.jfif": "4727 NORTH MONTANA AVENUE THE BRISTOWS",
		"15.jfif": "6768 BLUE LAKE ROAD",
		"16.jpeg": "Thank you.",
		"17.jpeg": "I am Really sorry.",
		"18.jpeg": "you are beautiful",
		"19.jpeg": "Get well soon.",
		"20.jpeg": "Eid mubarak",
		"23.jfif": "Kentucky 552 WDN",
		"28.jfif": "Indiana 825ZYJ",
		"31.jpg":  "ONE WAY",
		"32.jpg":  "SPEED LIMIT 30",
		"33.jpg":  "STOP",
		"34.jpg":  "ROAD CLOSED",
		"50.jfif": "2120 MIDLAKE DRIVE",
	}
}

// GroundTruthKey recovers the ground-truth lookup key from a variant's
// object key:
//
//	"{base}_{suffix}/{op}_{param}.{ext}" -> "{base}.{ext}"
//
// The suffix is the last underscore-delimited field of the first path
// segment, and every occurrence of "_"+suffix in that segment is removed.
// The extension is whatever follows the last dot of the last segment (the
// whole segment if it has no dot). Existing result sets were keyed with
// exactly this derivation, so it is kept as is even where it is lossy:
// "img_ab_ab/x.png" maps to "img.png".
func GroundTruthKey(objectKey string) string {
	segments := strings.Split(objectKey, "/")
	first, last := segments[0], segments[len(segments)-1]

	fields := strings.Split(first, "_")
	suffix := fields[len(fields)-1]
	base := strings.ReplaceAll(first, "_"+suffix, "")

	ext := last[strings.LastIndexByte(last, '.')+1:]
	return base + "." + ext
}

// SplitObjectKey splits a variant object key into its folder
// ("{base}_{suffix}") and descriptor ("{op}_{param}.{ext}"). It fails
// unless the key has exactly two non-empty segments.
func SplitObjectKey(objectKey string) (folder, descriptor string, ok bool) {
	folder, descriptor, found := strings.Cut(objectKey, "/")
	if !found || folder == "" || descriptor == "" || strings.Contains(descriptor, "/") {
		return "", "", false
	}
	return folder, descriptor, true
}

// OperationKey strips the last extension from a descriptor:
// "blurred_9.jfif" -> "blurred_9", "brightness_0.25.jpg" -> "brightness_0.25".
// A descriptor without a dot yields "".
func OperationKey(descriptor string) string {
	i := strings.LastIndexByte(descriptor, '.')
	if i < 0 {
		return ""
	}
	return descriptor[:i]
}
