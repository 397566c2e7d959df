package enums

// LineSource names the backing store of a cart line.
type LineSource string

const (
	LineSourceLocal  LineSource = "local"
	LineSourceRemote LineSource = "remote"
)

// String implements fmt.Stringer.
func (l LineSource) String() string {
	return string(l)
}
