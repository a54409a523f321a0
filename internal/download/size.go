package download

import "fmt"

var sizeSuffixes = [...]string{"bytes", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// Magnitude returns floor(log1024(n)), or 0 for n < 1024.
func Magnitude(n int64) int {
	mag := 0
	for n >= 1024 && mag < len(sizeSuffixes)-1 {
		n >>= 10
		mag++
	}
	return mag
}

// Scaled returns n in units of 1024^mag.
func Scaled(n int64, mag int) float64 {
	v := float64(n)
	for i := 0; i < mag; i++ {
		v /= 1024
	}
	return v
}

// SizeSuffix returns the unit name for a magnitude.
func SizeSuffix(mag int) string {
	if mag < 0 || mag >= len(sizeSuffixes) {
		return sizeSuffixes[0]
	}
	return sizeSuffixes[mag]
}

// FormatSize renders n with two decimals in its own magnitude.
func FormatSize(n int64) string {
	mag := Magnitude(n)
	return fmt.Sprintf("%.2f %s", Scaled(n, mag), SizeSuffix(mag))
}
