package systems

import "math"

// Kernels evaluates the smoothing kernels for a fixed radius. Radius powers
// and normalization constants are computed once so the per-neighbor loops
// only multiply.
type Kernels struct {
	// Pow[k] holds radius^k for k in 0..6.
	Pow [7]float32

	densityScale   float32 // 15 / (2 pi h^5)
	nearScale      float32 // 15 / (pi h^6)
	densitySlope   float32 // 15 / (pi h^5)
	nearSlope      float32 // 45 / (pi h^6)
	laplacianScale float32 // 45 / (pi h^6)
}

// NewKernels precomputes kernel constants for smoothing radius h.
func NewKernels(h float32) Kernels {
	var k Kernels
	k.Pow[0] = 1
	for i := 1; i < len(k.Pow); i++ {
		k.Pow[i] = k.Pow[i-1] * h
	}
	const pi = float32(math.Pi)
	k.densityScale = 15 / (2 * pi * k.Pow[5])
	k.nearScale = 15 / (pi * k.Pow[6])
	k.densitySlope = 15 / (pi * k.Pow[5])
	k.nearSlope = 45 / (pi * k.Pow[6])
	k.laplacianScale = 45 / (pi * k.Pow[6])
	return k
}

// Radius returns the smoothing radius.
func (k *Kernels) Radius() float32 { return k.Pow[1] }

// Density is the spiky-squared kernel, smooth over the whole radius.
func (k *Kernels) Density(dist float32) float32 {
	if dist >= k.Pow[1] {
		return 0
	}
	v := k.Pow[1] - dist
	return v * v * k.densityScale
}

// NearDensity is the spiky-cubed kernel; it only matters at short range.
func (k *Kernels) NearDensity(dist float32) float32 {
	if dist >= k.Pow[1] {
		return 0
	}
	v := k.Pow[1] - dist
	return v * v * v * k.nearScale
}

// DensityDerivative is d/dr of Density. Always <= 0.
func (k *Kernels) DensityDerivative(dist float32) float32 {
	if dist >= k.Pow[1] {
		return 0
	}
	v := k.Pow[1] - dist
	return -v * k.densitySlope
}

// NearDensityDerivative is d/dr of NearDensity. Always <= 0.
func (k *Kernels) NearDensityDerivative(dist float32) float32 {
	if dist >= k.Pow[1] {
		return 0
	}
	v := k.Pow[1] - dist
	return -v * v * k.nearSlope
}

// ViscosityLaplacian is the Laplacian of the viscosity kernel. Always >= 0.
func (k *Kernels) ViscosityLaplacian(dist float32) float32 {
	if dist >= k.Pow[1] {
		return 0
	}
	return (k.Pow[1] - dist) * k.laplacianScale
}
