package game

import "github.com/go-gl/mathgl/mgl64"

// Projectile is a ballistic shot fired from the vehicle. Its position is a
// pure function of the launch parameters and elapsed time; nothing is
// integrated frame to frame.
type Projectile struct {
	ID        uint32
	Position  mgl64.Vec3
	Initial   mgl64.Vec3
	Velocity  mgl64.Vec3 // horizontal at launch
	SpawnTime float64    // vehicle clock at launch
}

// PositionAt returns the position at simulated time now:
// constant horizontal velocity, y = y0 - g*t^2/2.
func (p *Projectile) PositionAt(now, gravity float64) mgl64.Vec3 {
	t := now - p.SpawnTime
	return mgl64.Vec3{
		p.Initial.X() + p.Velocity.X()*t,
		p.Initial.Y() - 0.5*gravity*t*t,
		p.Initial.Z() + p.Velocity.Z()*t,
	}
}

// ProjectileEventKind distinguishes spawn from expiry
type ProjectileEventKind uint8

const (
	ProjectileSpawned ProjectileEventKind = iota + 1
	ProjectileExpired
)

func (k ProjectileEventKind) String() string {
	switch k {
	case ProjectileSpawned:
		return "spawned"
	case ProjectileExpired:
		return "expired"
	}
	return "unknown"
}

// ProjectileEvent tells a renderer to add or remove a projectile object
type ProjectileEvent struct {
	Kind       ProjectileEventKind
	Projectile Projectile
}
