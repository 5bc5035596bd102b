// Package interp provides the measurement interpolation strategies used
// by the push-based synced collector to synthesize a value at the
// primary sensor's exact timestamp.
//
// All interpolators operate on a time-ordered sample window and report
// failure with a boolean rather than an error: a failed interpolation
// only means no synced output for that event.
package interp

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/inertial.report/internal/imu"
)

// Interpolator produces a measurement value at the target timestamp from
// a window of samples ordered by non-decreasing timestamp. Returns false
// when the window cannot support the strategy (e.g. too few samples).
type Interpolator interface {
	Interpolate(samples []imu.Measurement, target int64, out *imu.Measurement) bool
}

// Direct passes through the most recent sample at or before the target
// timestamp, overwriting only the timestamp. When every sample is newer
// than the target it falls back to the oldest sample.
type Direct struct{}

// Interpolate implements Interpolator.
func (Direct) Interpolate(samples []imu.Measurement, target int64, out *imu.Measurement) bool {
	if len(samples) == 0 {
		return false
	}
	pick := 0
	for i := range samples {
		if samples[i].Timestamp <= target {
			pick = i
		}
	}
	out.CopyFrom(&samples[pick])
	out.Timestamp = target
	return true
}

// Linear interpolates between the two newest samples by elapsed-time
// fraction. Triad payloads are interpolated per component; attitude
// quaternions use spherical interpolation and are renormalized.
// Extrapolates when the target lies past the newest sample.
type Linear struct{}

// Interpolate implements Interpolator.
func (Linear) Interpolate(samples []imu.Measurement, target int64, out *imu.Measurement) bool {
	if len(samples) < 2 {
		return false
	}
	s0 := &samples[len(samples)-2]
	s1 := &samples[len(samples)-1]
	if s1.Timestamp == s0.Timestamp {
		return Direct{}.Interpolate(samples, target, out)
	}
	f := float64(target-s0.Timestamp) / float64(s1.Timestamp-s0.Timestamp)

	out.CopyFrom(s1)
	out.Timestamp = target
	if s0.Kind == imu.KindAttitude {
		out.Attitude = slerp(s0.Attitude, s1.Attitude, f)
		out.HeadingAccuracy = lerp(s0.HeadingAccuracy, s1.HeadingAccuracy, f)
		return true
	}
	out.Value = lerpVec(s0.Value, s1.Value, f)
	if s0.HasBias && s1.HasBias {
		out.Bias = lerpVec(s0.Bias, s1.Bias, f)
	}
	return true
}

// Quadratic fits a three-point Lagrange polynomial per scalar component
// across the three newest samples and evaluates it at the target. Windows
// with fewer samples fall back to Linear and then Direct. Attitude is
// always interpolated spherically; a componentwise quadratic fit does not
// stay on the unit sphere.
type Quadratic struct{}

// Interpolate implements Interpolator.
func (Quadratic) Interpolate(samples []imu.Measurement, target int64, out *imu.Measurement) bool {
	if len(samples) < 3 {
		if len(samples) == 2 {
			return Linear{}.Interpolate(samples, target, out)
		}
		return Direct{}.Interpolate(samples, target, out)
	}
	s0 := &samples[len(samples)-3]
	s1 := &samples[len(samples)-2]
	s2 := &samples[len(samples)-1]
	if s0.Kind == imu.KindAttitude {
		return Linear{}.Interpolate(samples, target, out)
	}
	t0, t1, t2 := s0.Timestamp, s1.Timestamp, s2.Timestamp
	if t0 == t1 || t0 == t2 || t1 == t2 {
		return Linear{}.Interpolate(samples, target, out)
	}

	// Lagrange basis weights at the target.
	ft, f0, f1, f2 := float64(target), float64(t0), float64(t1), float64(t2)
	w0 := (ft - f1) * (ft - f2) / ((f0 - f1) * (f0 - f2))
	w1 := (ft - f0) * (ft - f2) / ((f1 - f0) * (f1 - f2))
	w2 := (ft - f0) * (ft - f1) / ((f2 - f0) * (f2 - f1))
	fit := func(y0, y1, y2 float64) float64 { return y0*w0 + y1*w1 + y2*w2 }

	out.CopyFrom(s2)
	out.Timestamp = target
	out.Value = imu.Vector3{
		X: fit(s0.Value.X, s1.Value.X, s2.Value.X),
		Y: fit(s0.Value.Y, s1.Value.Y, s2.Value.Y),
		Z: fit(s0.Value.Z, s1.Value.Z, s2.Value.Z),
	}
	if s0.HasBias && s1.HasBias && s2.HasBias {
		out.Bias = imu.Vector3{
			X: fit(s0.Bias.X, s1.Bias.X, s2.Bias.X),
			Y: fit(s0.Bias.Y, s1.Bias.Y, s2.Bias.Y),
			Z: fit(s0.Bias.Z, s1.Bias.Z, s2.Bias.Z),
		}
	}
	return true
}

// DefaultFor returns the interpolator used for a kind when none is
// configured: spherical linear for attitude, quadratic for the triad
// kinds.
func DefaultFor(kind imu.SensorKind) Interpolator {
	if kind == imu.KindAttitude {
		return Linear{}
	}
	return Quadratic{}
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }

func lerpVec(a, b imu.Vector3, f float64) imu.Vector3 {
	return imu.Vector3{
		X: lerp(a.X, b.X, f),
		Y: lerp(a.Y, b.Y, f),
		Z: lerp(a.Z, b.Z, f),
	}
}

// slerp interpolates on the unit sphere via q0 * (q0^-1 q1)^f, taking the
// shorter arc. The result is renormalized to absorb rounding drift.
func slerp(a, b imu.Quaternion, f float64) imu.Quaternion {
	if a.Dot(b) < 0 {
		b = imu.Quaternion{A: -b.A, B: -b.B, C: -b.C, D: -b.D}
	}
	q0 := quat.Number{Real: a.A, Imag: a.B, Jmag: a.C, Kmag: a.D}
	q1 := quat.Number{Real: b.A, Imag: b.B, Jmag: b.C, Kmag: b.D}
	q := quat.Mul(q0, quat.Pow(quat.Mul(quat.Inv(q0), q1), quat.Number{Real: f}))
	return imu.Quaternion{A: q.Real, B: q.Imag, C: q.Jmag, D: q.Kmag}.Normalize()
}
