package spoke

import (
	"math"
	"strconv"
)

// EntityId is an opaque handle that identifies an entity within one Registry.
type EntityId uint32

// NoEntity is the reserved null entity.
const NoEntity = EntityId(math.MaxUint32)

func (e EntityId) String() string {
	if e == NoEntity {
		return "none"
	}

	return strconv.Itoa(int(e))
}

// Row is the dense index of an entity within the columns of its archetype.
// A row is only meaningful in combination with its archetype and is reassigned
// whenever rows are compacted.
type Row uint32

// NoRow is returned wherever a row could not be resolved.
const NoRow = Row(math.MaxUint32)
