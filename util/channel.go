package util

// TrySend delivers value only if the receiver has room, reporting whether it did.
func TrySend[T interface{}](to chan<- T, value T) bool {
	select {
	case to <- value:
		return true
	default:
		return false
	}
}
