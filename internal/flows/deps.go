package flows

// Deps groups the flow dependency sets. The Engine builds it once at Build time.
type Deps struct {
	Login    LoginDeps
	Validate ValidateDeps
	Profile  ProfileDeps
}
