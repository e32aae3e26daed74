package cascade

// Ptr returns a pointer to the given value. This is useful for setting
// optional pointer fields in option and definition structs.
func Ptr[T any](t T) *T {
	return &t
}
