package cart

import (
	"fmt"

	"github.com/mylagoscommunity/cart-service/pkg/enums"
	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
)

// LineRef addresses a cart line in exactly one backing store.
type LineRef interface {
	LineID() int64
	Source() enums.LineSource
	isLineRef()
}

// LocalLine addresses a guest cart entry by its position in guest storage.
type LocalLine struct {
	Index int
}

func (l LocalLine) LineID() int64 { return -int64(l.Index + 1) }
func (l LocalLine) Source() enums.LineSource { return enums.LineSourceLocal }
func (LocalLine) isLineRef() {}

// RemoteLine addresses a record in the remote cart store.
type RemoteLine struct {
	RecordID int64
}

func (r RemoteLine) LineID() int64 { return r.RecordID }
func (r RemoteLine) Source() enums.LineSource { return enums.LineSourceRemote }
func (RemoteLine) isLineRef() {}

// ParseLineID maps a wire line id back to its backing store: negative ids are
// guest positions, positive ids are remote record ids.
func ParseLineID(id int64) (LineRef, error) {
	switch {
	case id < 0:
		return LocalLine{Index: int(-id) - 1}, nil
	case id > 0:
		return RemoteLine{RecordID: id}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid line id %d", id))
}
