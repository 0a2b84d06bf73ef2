package bridge

type FieldType byte

const (
	IntType FieldType = iota
	StringType
)

const (
	MaxChunkSize    = 10
	MaxStringLength = 1 << 20
)
