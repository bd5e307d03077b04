package bsim

import "math"

// LimitJunction limits the change of a pn junction voltage so the exponential stays tame.
// vt is the thermal voltage times the emission coefficient, vcrit the critical voltage.
func LimitJunction(vnew, vold, vt, vcrit float64) (float64, bool) {
	v := vnew
	if vnew > vcrit && math.Abs(vnew-vold) > vt+vt {
		if vold > 0 {
			arg := 1 + (vnew-vold)/vt
			if arg > 0 {
				v = vold + vt*math.Log(arg)
			} else {
				v = vcrit
			}
		} else {
			v = vt * math.Log(vnew/vt)
		}
	} else if vnew < 0 {
		// Reverse bias steps
		arg := 2*vold - 1
		if vold > 0 {
			arg = -vold - 1
		}
		if vnew < arg {
			v = arg
		}
	}
	return v, v != vnew
}

// LimitFET limits the change of a gate voltage around the threshold vto.
func LimitFET(vnew, vold, vto float64) (float64, bool) {
	v := vnew
	vtsthi := math.Abs(2*(vold-vto)) + 2
	vtstlo := vtsthi/2 + 2
	vtox := vto + 3.5
	delv := vnew - vold

	if vold >= vto {
		if vold >= vtox {
			switch {
			case delv <= 0:
				// Going off
				if vnew >= vtox {
					if -delv > vtstlo {
						v = vold - vtstlo
					}
				} else {
					v = math.Max(vnew, vto+2)
				}
			case delv >= vtsthi:
				v = vold + vtsthi
			}
		} else {
			// Middle region
			if delv <= 0 {
				v = math.Max(vnew, vto-0.5)
			} else {
				v = math.Min(vnew, vto+4)
			}
		}
	} else {
		// Off
		if delv <= 0 {
			if -delv > vtsthi {
				v = vold - vtsthi
			}
		} else {
			vtemp := vto + 0.5
			if vnew <= vtemp {
				if delv > vtstlo {
					v = vold + vtstlo
				}
			} else {
				v = vtemp
			}
		}
	}
	return v, v != vnew
}

// LimitVds limits the change of a drain-source voltage.
func LimitVds(vnew, vold float64) (float64, bool) {
	v := vnew
	if vold >= 3.5 {
		if vnew > vold {
			v = math.Min(vnew, 3*vold+2)
		} else if vnew < 3.5 {
			v = math.Max(vnew, 2)
		}
	} else {
		if vnew > vold {
			v = math.Min(vnew, 4)
		} else if vnew < vold {
			v = math.Max(vnew, -0.5)
		}
	}
	return v, v != vnew
}

// criticalVoltage is the junction voltage above which the exponential is limited.
func criticalVoltage(vt, isat float64) float64 {
	return vt * math.Log(vt/(math.Sqrt2*isat))
}
