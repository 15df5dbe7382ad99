// Package identity holds the national-ID checksum validator shared by the
// transfer engine and the inbound API layer.
package identity

// ValidNationalID reports whether s is a well-formed 11-digit national id:
// all digits, non-zero leading digit, and both checksum digits correct.
//
// With digits d1..d11, S1 = d1+d3+d5+d7+d9 and S2 = d2+d4+d6+d8:
//
//	d10 = (7*S1 - S2) mod 10   (mod adjusted into [0,10))
//	d11 = (d1+...+d10) mod 10
func ValidNationalID(s string) bool {
	if len(s) != 11 {
		return false
	}
	var d [11]int
	for i := 0; i < 11; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d[i] = int(c - '0')
	}
	if d[0] == 0 {
		return false
	}

	s1 := d[0] + d[2] + d[4] + d[6] + d[8]
	s2 := d[1] + d[3] + d[5] + d[7]

	check10 := (7*s1 - s2) % 10
	if check10 < 0 {
		check10 += 10
	}
	if d[9] != check10 {
		return false
	}

	sum := 0
	for i := 0; i < 10; i++ {
		sum += d[i]
	}
	return d[10] == sum%10
}
