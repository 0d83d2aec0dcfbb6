// Package kinematics computes derived per-event variables from particle collections.
package kinematics

import (
	"math"

	"github.com/tarstars/hep_boosting/golang/ntuple"
)

// Pad is the value of a variable whose object is absent in an event.
const Pad = -1.0

//Object is one particle picked out of an event.
type Object struct {
	Pt, Eta, Phi, Mass float64
}

//Px is the x component of the momentum.
func (o Object) Px() float64 { return o.Pt * math.Cos(o.Phi) }

//Py is the y component of the momentum.
func (o Object) Py() float64 { return o.Pt * math.Sin(o.Phi) }

//Pz is the z component of the momentum.
func (o Object) Pz() float64 { return o.Pt * math.Sinh(o.Eta) }

//Energy assumes the stored mass is the invariant mass of the object.
func (o Object) Energy() float64 {
	p := o.Pt * math.Cosh(o.Eta)
	return math.Sqrt(o.Mass*o.Mass + p*p)
}

//Pick extracts the idx-th object of a collection in an event; ok is false if it is absent.
func Pick(coll *ntuple.Collection, event, idx int) (obj Object, ok bool) {
	if obj.Pt, ok = coll.Get("pt", event, idx); !ok {
		return Object{}, false
	}
	obj.Eta, _ = coll.Get("eta", event, idx)
	obj.Phi, _ = coll.Get("phi", event, idx)
	obj.Mass, _ = coll.Get("mass", event, idx)
	return obj, true
}

//DeltaPhi returns the azimuthal difference wrapped into (-pi, pi].
func DeltaPhi(phi1, phi2 float64) float64 {
	d := math.Mod(phi1-phi2, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

//DeltaR is the distance in the eta-phi plane.
func DeltaR(a, b Object) float64 {
	deta := a.Eta - b.Eta
	dphi := DeltaPhi(a.Phi, b.Phi)
	return math.Sqrt(deta*deta + dphi*dphi)
}

//CosDeltaTheta is the cosine of the opening angle between two objects.
func CosDeltaTheta(a, b Object) float64 {
	coshEta := math.Cosh(a.Eta) * math.Cosh(b.Eta)
	sinhEta := math.Sinh(a.Eta) * math.Sinh(b.Eta)
	return (math.Cos(a.Phi-b.Phi) + sinhEta) / coshEta
}

//InvariantMass of the pair.
func InvariantMass(a, b Object) float64 {
	e := a.Energy() + b.Energy()
	px := a.Px() + b.Px()
	py := a.Py() + b.Py()
	pz := a.Pz() + b.Pz()
	m2 := e*e - px*px - py*py - pz*pz
	if m2 < 0 {
		return 0
	}
	return math.Sqrt(m2)
}

//PairMT is the transverse mass of two massless objects.
func PairMT(a, b Object) float64 {
	return math.Sqrt(2 * a.Pt * b.Pt * (1 - math.Cos(a.Phi-b.Phi)))
}

//MT is the transverse mass of an object and the missing transverse momentum.
func MT(a Object, met, metPhi float64) float64 {
	return math.Sqrt(2 * a.Pt * met * (1 - math.Cos(a.Phi-metPhi)))
}
