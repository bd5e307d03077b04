package consts

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
	KELVIN    = 273.15        // Kelvin temperature (K)
	KBOQ      = 8.617087e-5   // Boltzmann constant over charge (V/K)

	EPS0   = 8.85418e-12 // Vacuum permittivity (F/m)
	EPSSI  = 1.03594e-10 // Silicon permittivity (F/m)
	EPSOX  = 3.453133e-11
	REFTMP = 300.15 // 27degC

	NI0 = 1.45e10 // Intrinsic carrier density at 300.15K (1/cm³)
)

// Numeric guards shared by the exponential and log smoothing functions.
const (
	MAX_EXP       = 5.834617425e14
	MIN_EXP       = 1.713908431e-15
	EXP_THRESHOLD = 34.0
	MIN_LOG       = 1e-38

	DELTA_1 = 0.02
	DELTA_3 = 0.02
	DELTA_4 = 0.02
)
