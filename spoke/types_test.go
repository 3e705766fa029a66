package spoke

type Position struct {
	Component[Position]
	X, Y float32
}

type Velocity struct {
	Component[Velocity]
	X, Y float32
}

type Health struct {
	Component[Health]
	Value uint32
}

type Counter struct {
	Component[Counter]
	Value uint32
}

type Tag struct {
	Component[Tag]
}

type Team struct {
	SharedComponent[Team]
	Name  [8]byte
	Color uint32
}

type Mesh struct {
	SharedComponent[Mesh]
	Vertices int
}
