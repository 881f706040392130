package ui

// glyphs is a 5x5 bitmap font packed row-major into the low 25 bits of
// a uint32, top row in the highest bits. Runes without a glyph render
// as blanks.
var glyphs = map[rune]uint32{
	'A': 0b01110_10001_11111_10001_10001,
	'B': 0b11110_10001_11110_10001_11110,
	'C': 0b01111_10000_10000_10000_01111,
	'D': 0b11110_10001_10001_10001_11110,
	'E': 0b11111_10000_11110_10000_11111,
	'F': 0b11111_10000_11110_10000_10000,
	'G': 0b01111_10000_10011_10001_01110,
	'H': 0b10001_10001_11111_10001_10001,
	'I': 0b11111_00100_00100_00100_11111,
	'J': 0b00111_00001_00001_10001_01110,
	'K': 0b10001_10010_11100_10010_10001,
	'L': 0b10000_10000_10000_10000_11111,
	'M': 0b10001_11011_10101_10001_10001,
	'N': 0b10001_11001_10101_10011_10001,
	'O': 0b01110_10001_10001_10001_01110,
	'P': 0b11110_10001_11110_10000_10000,
	'Q': 0b01110_10001_10101_10010_01101,
	'R': 0b11110_10001_11110_10010_10001,
	'S': 0b01111_10000_01110_00001_11110,
	'T': 0b11111_00100_00100_00100_00100,
	'U': 0b10001_10001_10001_10001_01110,
	'V': 0b10001_10001_10001_01010_00100,
	'W': 0b10001_10001_10101_11011_10001,
	'X': 0b10001_01010_00100_01010_10001,
	'Y': 0b10001_01010_00100_00100_00100,
	'Z': 0b11111_00010_00100_01000_11111,

	'a': 0b00000_01110_00001_01111_01111,
	'b': 0b10000_10000_11110_10001_11110,
	'c': 0b00000_01110_10000_10000_01110,
	'd': 0b00001_00001_01111_10001_01111,
	'e': 0b01110_10001_11111_10000_01110,
	'f': 0b00110_01000_11110_01000_01000,
	'g': 0b01111_10001_01111_00001_01110,
	'h': 0b10000_10000_11110_10001_10001,
	'i': 0b00100_00000_00100_00100_00100,
	'j': 0b00010_00000_00010_00010_01100,
	'k': 0b10000_10010_11100_10010_10001,
	'l': 0b01100_00100_00100_00100_01110,
	'm': 0b00000_11010_10101_10101_10001,
	'n': 0b00000_11110_10001_10001_10001,
	'o': 0b00000_01110_10001_10001_01110,
	'p': 0b00000_11110_10001_11110_10000,
	'q': 0b00000_01111_10001_01111_00001,
	'r': 0b00000_10110_11000_10000_10000,
	's': 0b00000_01110_11000_00110_11100,
	't': 0b01000_11110_01000_01000_00110,
	'u': 0b00000_10001_10001_10001_01110,
	'v': 0b00000_10001_10001_01010_00100,
	'w': 0b00000_10001_10101_10101_01010,
	'x': 0b00000_10001_01010_01010_10001,
	'y': 0b00000_10001_01111_00001_01110,
	'z': 0b00000_11111_00110_01100_11111,

	'0': 0b01110_10011_10101_11001_01110,
	'1': 0b00100_01100_00100_00100_01110,
	'2': 0b01110_10001_00110_01000_11111,
	'3': 0b11110_00001_00110_00001_11110,
	'4': 0b10001_10001_11111_00001_00001,
	'5': 0b11111_10000_11110_00001_11110,
	'6': 0b01110_10000_11110_10001_01110,
	'7': 0b11111_00001_00010_00100_00100,
	'8': 0b01110_10001_01110_10001_01110,
	'9': 0b01110_10001_01111_00001_01110,

	' ':  0b00000_00000_00000_00000_00000,
	'.':  0b00000_00000_00000_00000_00100,
	',':  0b00000_00000_00000_00100_01000,
	'!':  0b00100_00100_00100_00000_00100,
	'?':  0b01110_10001_00110_00000_00100,
	'\'': 0b00100_00100_00000_00000_00000,
	'"':  0b01010_01010_00000_00000_00000,
	'-':  0b00000_00000_11111_00000_00000,
	':':  0b00000_00100_00000_00100_00000,
	';':  0b00000_00100_00000_00100_01000,
	'(':  0b00010_00100_00100_00100_00010,
	')':  0b01000_00100_00100_00100_01000,
	'·':  0b00000_00000_00100_00000_00000,

	// german
	'Ä': 0b01010_01110_10001_11111_10001,
	'Ö': 0b01010_01110_10001_10001_01110,
	'Ü': 0b01010_10001_10001_10001_01110,
	'ä': 0b01010_01110_00001_01111_01111,
	'ö': 0b01010_00000_01110_10001_01110,
	'ü': 0b01010_00000_10001_10001_01110,
	'ß': 0b01110_10001_11110_10001_11110,

	// polish
	'Ą': 0b01110_10001_11111_10001_10011,
	'Ć': 0b00010_01111_10000_10000_01111,
	'Ę': 0b11111_10000_11110_10000_11011,
	'Ł': 0b10000_10000_11100_10000_11111,
	'Ń': 0b00100_10001_11001_10101_10011,
	'Ó': 0b00100_01110_10001_10001_01110,
	'Ś': 0b00010_01111_10000_01110_11110,
	'Ź': 0b00010_11111_00010_01000_11111,
	'Ż': 0b00100_11111_00010_01000_11111,
	'ą': 0b00000_01110_00001_01111_01011,
	'ć': 0b00010_01110_10000_10000_01110,
	'ę': 0b01110_10001_11111_10000_01011,
	'ł': 0b01100_00100_01110_00100_01110,
	'ń': 0b00100_00000_11110_10001_10001,
	'ó': 0b00100_00000_01110_10001_01110,
	'ś': 0b00010_00000_01110_11000_01110,
	'ź': 0b00010_00000_11111_00110_11111,
	'ż': 0b00100_00000_11111_00110_11111,

	// french
	'À': 0b01000_01110_10001_11111_10001,
	'Â': 0b00100_01110_10001_11111_10001,
	'Ç': 0b01110_10000_10000_01110_00100,
	'È': 0b01000_11111_10000_11110_11111,
	'É': 0b00010_11111_10000_11110_11111,
	'Ê': 0b00100_11111_10000_11110_11111,
	'Ë': 0b01010_11111_10000_11110_11111,
	'Î': 0b00100_01010_00100_00100_11111,
	'Ï': 0b01010_11111_00100_00100_11111,
	'Ô': 0b00100_01110_10001_10001_01110,
	'Ù': 0b01000_10001_10001_10001_01110,
	'Û': 0b00100_10001_10001_10001_01110,
	'Ÿ': 0b01010_10001_01010_00100_00100,
	'Œ': 0b01111_10101_10111_10101_01111,
	'à': 0b01000_01110_00001_01111_01111,
	'â': 0b00100_01110_00001_01111_01111,
	'ç': 0b00000_01110_10000_01110_00100,
	'è': 0b01000_01110_11111_10000_01110,
	'é': 0b00010_01110_11111_10000_01110,
	'ê': 0b00100_01110_11111_10000_01110,
	'ë': 0b01010_01110_11111_10000_01110,
	'î': 0b00100_01010_00100_00100_00100,
	'ï': 0b01010_00000_00100_00100_00100,
	'ô': 0b00100_00000_01110_10001_01110,
	'ù': 0b01000_00000_10001_10001_01110,
	'û': 0b00100_01010_10001_10001_01110,
	'ÿ': 0b01010_10001_01111_00001_01110,
	'œ': 0b00000_01111_10101_10100_01111,
}

// glyphBit reports whether the pixel at (row, col) of a glyph is lit.
func glyphBit(g uint32, row, col int) bool {
	return (g>>uint(24-(row*glyphWidth+col)))&1 == 1
}
