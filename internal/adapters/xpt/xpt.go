// Package xpt reads and writes the SAS transport (XPORT) version 5
// format, the fixed-record interchange layout the survey program
// publishes its data files in. The layout is a sequence of 80-byte
// card images: library and member headers, one 140-byte NAMESTR entry
// per variable, then row-major observation data padded with blanks to
// a card boundary. Numerics are 8-byte IBM System/360 doubles.
package xpt

// Record geometry.
const (
	recordLen  = 80  // every header is one card image
	namestrLen = 140 // variable descriptor entry
)

// Variable types stored in a NAMESTR entry.
const (
	typeNumeric = 1
	typeChar    = 2
)

// numericWidth is the on-disk width of an untruncated IBM double.
const numericWidth = 8

// maxNameLen caps variable and member names per the v5 layout.
const maxNameLen = 8

// Header-record keywords in file order.
const (
	keywordLibrary = "LIBRARY "
	keywordMember  = "MEMBER  "
	keywordDscrptr = "DSCRPTR "
	keywordNamestr = "NAMESTR "
	keywordObs     = "OBS     "
)

// headerPrefix builds the 48-byte constant prefix of a header record.
func headerPrefix(keyword string) string {
	return "HEADER RECORD*******" + keyword + "HEADER RECORD!!!!!!!"
}

// blankTail is the zero-filled remainder most header records carry.
const blankTail = "000000000000000000000000000000  "

// memberTail declares the member-descriptor size (160) and the
// NAMESTR entry size (140).
const memberTail = "000000000000000001600000000140  "
