package spoke

import (
	"github.com/kamstrup/intmap"
	"github.com/oliverbestmann/stockpile/internal/assert"
)

// entityRows maps entities to rows and back. Rows are dense:
// the row of each entity is smaller than Len.
type entityRows struct {
	rows     *intmap.Map[EntityId, Row]
	entities []EntityId
}

func newEntityRows() entityRows {
	return entityRows{
		rows: intmap.New[EntityId, Row](16),
	}
}

// Set assigns the row to the entity. The row must either already be in use,
// in which case its entity is replaced, or be equal to Len.
func (m *entityRows) Set(entity EntityId, row Row) {
	assert.That(int(row) <= len(m.entities), "row %d is not dense, only %d rows in use", row, len(m.entities))

	if int(row) == len(m.entities) {
		m.entities = append(m.entities, entity)
	} else {
		m.entities[row] = entity
	}

	m.rows.Put(entity, row)
}

func (m *entityRows) Row(entity EntityId) (Row, bool) {
	return m.rows.Get(entity)
}

func (m *entityRows) Entity(row Row) EntityId {
	if int(row) >= len(m.entities) {
		return NoEntity
	}

	return m.entities[row]
}

// Delete removes the entity from the lookup. The row keeps
// referencing the entity until it is replaced or truncated.
func (m *entityRows) Delete(entity EntityId) {
	m.rows.Del(entity)
}

// Truncate drops all rows starting at n.
func (m *entityRows) Truncate(n Row) {
	m.entities = m.entities[:n]
}

func (m *entityRows) Clear() {
	m.rows.Clear()
	m.entities = m.entities[:0]
}

func (m *entityRows) Len() int {
	return len(m.entities)
}

func (m *entityRows) Entities() []EntityId {
	return m.entities
}
