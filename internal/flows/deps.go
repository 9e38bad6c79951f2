package flows

import "strconv"

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Login  LoginDeps
	Signup SignupDeps
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
