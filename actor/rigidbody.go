package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies have infinite mass and are not affected by forces,
	// but their position/velocity is driven externally (moving platforms, animated colliders).
	BodyTypeKinematic
)

type Material struct {
	Density     float64
	mass        float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	// Friction is the Coulomb coefficient used for the tangential and twist
	// friction rows of the contact solver.
	Friction float64
	// RollingResistance is the coefficient limiting the angular rolling-friction impulse.
	RollingResistance float64

	LinearDamping  float64 // 0.0 - 1.0, typique : 0.01
	AngularDamping float64 // 0.0 - 1.0, typique : 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// Spatial properties
	PreviousTransform Transform
	Transform         Transform

	// Linear motion
	Velocity mgl64.Vec3 // Linear velocity (m/s)

	// Angular motion
	AngularVelocity mgl64.Vec3 // Vitesse de rotation (rad/s)
	// Inertia
	InertiaLocal        mgl64.Mat3 // Tenseur d'inertie en espace local
	InverseInertiaLocal mgl64.Mat3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64

	// IsTrigger marks a body as a trigger volume: it still generates contact
	// manifolds but the world never routes them into the constraint solver.
	IsTrigger bool

	// Physical properties
	Material Material
	BodyType BodyType // Dynamic, Static or Kinematic

	// Collision shape
	Shape ShapeInterface // The collision shape
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored for static)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	rb := &RigidBody{
		PreviousTransform: transform,
		Transform:         transform,
		Shape:             shape,
		BodyType:          bodyType,
		Velocity:          mgl64.Vec3{0, 0, 0},
	}

	// Calculate mass data based on body type
	if bodyType == BodyTypeStatic || bodyType == BodyTypeKinematic {
		// Static and kinematic bodies have infinite mass: forces never move them
		rb.Material = Material{
			Density: 0,
			mass:    math.Inf(1),
		}
	} else {
		// Dynamic bodies compute mass from shape and density
		rb.Material = Material{
			Density:     density,
			mass:        shape.ComputeMass(density),
			Restitution: 0.0,
		}
	}

	rb.InertiaLocal = shape.ComputeInertia(rb.Material.mass)
	rb.InverseInertiaLocal = rb.InertiaLocal.Inv()
	rb.Shape.ComputeAABB(rb.Transform)

	return rb
}

func (rb *RigidBody) TrySleep(dt float64, timethreshold float64, velocityThreshold float64) {
	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt // Incrémente le timer
		if rb.SleepTimer >= timethreshold {
			rb.Sleep()
		}
	} else {
		rb.Awake()
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.Shape.ComputeAABB(rb.Transform)
	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// IntegrateForces applies gravity, accumulated forces/torques, and damping
// to a dynamic body's velocities. Position is left untouched: the solver
// runs against these velocities before IntegratePosition commits any motion,
// so a constraint can still correct a body that gravity would otherwise
// drive into another one this same substep.
func (rb *RigidBody) IntegrateForces(dt float64, gravity mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic || rb.IsSleeping {
		return
	}

	rb.Velocity = rb.Velocity.Add(gravity.Mul(dt))
	rb.Velocity = rb.Velocity.Add(rb.accumulatedForce.Mul(1.0 / rb.Material.GetMass()))
	rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))

	Iinv := rb.GetInverseInertiaWorld()
	rb.AngularVelocity = rb.AngularVelocity.Add(Iinv.Mul3x1(rb.accumulatedTorque))
	rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))

	rb.ClearForces()
}

// IntegratePosition advances a dynamic body's transform by its current
// velocity. Run once per substep after the contact solver has corrected
// velocities, so the resulting motion already respects every constraint.
func (rb *RigidBody) IntegratePosition(dt float64) {
	if rb.BodyType != BodyTypeDynamic || rb.IsSleeping {
		return
	}

	rb.PreviousTransform.Position = rb.Transform.Position
	rb.PreviousTransform.Rotation = rb.Transform.Rotation

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()

	rb.Shape.ComputeAABB(rb.Transform)
}

// ApplySplitCorrection nudges position and orientation by the split-impulse
// pseudo-velocities the solver accumulated this step. These never feed back
// into Velocity or AngularVelocity, so the correction removes penetration
// without adding kinetic energy to the body.
func (rb *RigidBody) ApplySplitCorrection(splitLinVel, splitAngVel mgl64.Vec3, dt float64) {
	if rb.BodyType != BodyTypeDynamic || rb.IsSleeping {
		return
	}
	if splitLinVel == (mgl64.Vec3{}) && splitAngVel == (mgl64.Vec3{}) {
		return
	}

	rb.Transform.Position = rb.Transform.Position.Add(splitLinVel.Mul(dt))

	omegaQuat := mgl64.Quat{V: splitAngVel, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()

	rb.Shape.ComputeAABB(rb.Transform)
}

// AddForce in 1000N (1000 * kg⋅m/s²)
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()

		rb.accumulatedForce = rb.accumulatedForce.Add(force.Mul(1000))
	}
}

// AddTorque in 1000N⋅m
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()

		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque.Mul(1000))
	}
}

// Méthodes optionnelles pour reset
func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}

func (rb *RigidBody) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	// 1. Transformer la direction en espace local (rotation inverse)
	localDirection := rb.Transform.InverseRotation.Rotate(direction)

	// 2. Trouver le support en espace local
	localSupport := rb.Shape.Support(localDirection)

	// 3. Transformer le point support en espace monde (rotation + translation)
	worldSupport := rb.Transform.Rotation.Rotate(localSupport)
	return rb.Transform.Position.Add(worldSupport)
}

// InvMass returns the inverse mass used by the contact solver: zero for
// static and kinematic bodies, 1/mass otherwise.
func (rb *RigidBody) InvMass() float64 {
	if rb.BodyType != BodyTypeDynamic {
		return 0
	}
	m := rb.Material.GetMass()
	if m <= 0 || math.IsInf(m, 1) {
		return 0
	}
	return 1.0 / m
}

// Inertie en espace monde
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// Inverse de l'inertie en espace monde
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.BodyType != BodyTypeDynamic {
		return mgl64.Mat3{0, 0, 0, 0, 0, 0, 0, 0, 0}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}
