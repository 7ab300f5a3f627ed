package efistub

import "fmt"

// State is the position of a boot attempt in its linear sequence
type State uint8

const (
	Init State = iota
	ImagesLoaded
	MapSnapshotted
	BootServicesExited
	Aborted
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case ImagesLoaded:
		return "ImagesLoaded"
	case MapSnapshotted:
		return "MapSnapshotted"
	case BootServicesExited:
		return "BootServicesExited"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// next returns the only forward transition out of s
func (s State) next() (State, bool) {
	switch s {
	case Init, ImagesLoaded, MapSnapshotted:
		return s + 1, true
	}
	return s, false
}
