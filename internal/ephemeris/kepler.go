package ephemeris

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/skyfeed/internal/models"
)

const (
	j2000       = 2451545.0
	unixEpochJD = 2440587.5
	rad         = math.Pi / 180
)

// elements are mean orbital elements at J2000 and their rates per Julian
// century: semi-major axis (au), eccentricity, inclination, mean longitude,
// longitude of perihelion and longitude of the ascending node (degrees).
type elements struct {
	a, e, i, l, peri, node       float64
	da, de, di, dl, dperi, dnode float64
}

// Approximate Keplerian elements, valid 1800–2050.
var orbits = map[models.Body]elements{
	models.Mercury: {0.38709927, 0.20563593, 7.00497902, 252.25032350, 77.45779628, 48.33076593,
		0.00000037, 0.00001906, -0.00594749, 149472.67411175, 0.16047689, -0.12534081},
	models.Venus: {0.72333566, 0.00677672, 3.39467605, 181.97909950, 131.60246718, 76.67984255,
		0.00000390, -0.00004107, -0.00078890, 58517.81538729, 0.00268329, -0.27769418},
	earth: {1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0.0,
		0.00000562, -0.00004392, -0.01294668, 35999.37244981, 0.32327364, 0.0},
	models.Mars: {1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891,
		0.00001847, 0.00007882, -0.00813131, 19140.30268499, 0.44441088, -0.29257343},
	models.Jupiter: {5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909,
		-0.00011607, -0.00013253, -0.00183714, 3034.74612775, 0.21252668, 0.20469106},
	models.Saturn: {9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448,
		-0.00125060, -0.00050991, 0.00193609, 1222.49362201, -0.41897216, -0.28867794},
	models.Uranus: {19.18916464, 0.04725744, 0.77263783, 313.23810451, 170.95427630, 74.01692503,
		-0.00196176, -0.00004397, -0.00242939, 428.48202785, 0.40805281, 0.04240589},
	models.Neptune: {30.06992276, 0.00859048, 1.77004347, -55.12002969, 44.96476227, 131.78422574,
		0.00026291, 0.00005105, 0.00035372, 218.45945325, -0.32241464, -0.00508664},
	models.Pluto: {39.48211675, 0.24882730, 17.14001206, 238.92903833, 224.06891629, 110.30393684,
		-0.00031596, 0.00005170, 0.00004818, 145.20780515, -0.04062942, -0.01183482},
}

// earth is the Earth-Moon barycentre; it is not a detectable body.
const earth models.Body = "earth"

// Kepler is an offline oracle built on mean Keplerian elements for the
// planets and a truncated lunar series for the Moon. Longitudes are referred
// to the mean equinox of date and are good to a few arcminutes, which is
// enough for minute-level event times of everything but the Moon.
type Kepler struct {
	// VelocityStep is the half-width of the central difference used for
	// velocities. Zero means one hour.
	VelocityStep time.Duration
}

// NewKepler returns an analytic oracle with default settings.
func NewKepler() *Kepler {
	return &Kepler{}
}

func (k *Kepler) Longitude(ctx context.Context, body models.Body, t time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return longitude(body, centuries(t))
}

func (k *Kepler) Velocity(ctx context.Context, body models.Body, t time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h := k.VelocityStep
	if h <= 0 {
		h = time.Hour
	}
	before, err := longitude(body, centuries(t.Add(-h)))
	if err != nil {
		return 0, err
	}
	after, err := longitude(body, centuries(t.Add(h)))
	if err != nil {
		return 0, err
	}
	days := (2 * h).Hours() / 24
	return Wrap180(after-before) / days, nil
}

// centuries returns Julian centuries of TT since J2000. The TT-UTC offset
// is below the model's accuracy and is ignored.
func centuries(t time.Time) float64 {
	jd := unixEpochJD + float64(t.UnixNano())/float64(24*time.Hour)
	return (jd - j2000) / 36525
}

func longitude(body models.Body, T float64) (float64, error) {
	switch body {
	case models.Moon:
		return moonLongitude(T), nil
	case models.Sun:
		x, y, _ := heliocentric(orbits[earth], T)
		return Normalize(math.Atan2(-y, -x)/rad + precession(T)), nil
	}

	el, ok := orbits[body]
	if !ok || body == earth {
		return 0, fmt.Errorf("%w: %s", ErrUnknownBody, body)
	}
	px, py, _ := heliocentric(el, T)
	ex, ey, _ := heliocentric(orbits[earth], T)
	return Normalize(math.Atan2(py-ey, px-ex)/rad + precession(T)), nil
}

// precession is the accumulated general precession in longitude since J2000.
func precession(T float64) float64 {
	return 1.396971*T + 0.0003086*T*T
}

// heliocentric returns J2000 ecliptic rectangular coordinates in au.
func heliocentric(el elements, T float64) (x, y, z float64) {
	a := el.a + el.da*T
	e := el.e + el.de*T
	inc := (el.i + el.di*T) * rad
	l := el.l + el.dl*T
	peri := el.peri + el.dperi*T
	node := (el.node + el.dnode*T) * rad

	m := Wrap180(l-peri) * rad
	w := (peri*rad - node)

	ecc := solveKepler(m, e)
	xp := a * (math.Cos(ecc) - e)
	yp := a * math.Sqrt(1-e*e) * math.Sin(ecc)

	cw, sw := math.Cos(w), math.Sin(w)
	cn, sn := math.Cos(node), math.Sin(node)
	ci, si := math.Cos(inc), math.Sin(inc)

	x = (cw*cn-sw*sn*ci)*xp + (-sw*cn-cw*sn*ci)*yp
	y = (cw*sn+sw*cn*ci)*xp + (-sw*sn+cw*cn*ci)*yp
	z = (sw*si)*xp + (cw*si)*yp
	return x, y, z
}

// solveKepler solves M = E - e sin E for E by Newton iteration.
func solveKepler(m, e float64) float64 {
	ecc := m + e*math.Sin(m)
	for i := 0; i < 30; i++ {
		d := (ecc - e*math.Sin(ecc) - m) / (1 - e*math.Cos(ecc))
		ecc -= d
		if math.Abs(d) < 1e-12 {
			break
		}
	}
	return ecc
}

// moonLongitude sums the largest periodic terms of the lunar longitude,
// referred to the equinox of date.
func moonLongitude(T float64) float64 {
	lp := 218.3164477 + 481267.88123421*T
	d := (297.8501921 + 445267.1114034*T) * rad
	m := (357.5291092 + 35999.0502909*T) * rad
	mp := (134.9633964 + 477198.8675055*T) * rad
	f := (93.2720950 + 483202.0175233*T) * rad

	lon := lp +
		6.288774*math.Sin(mp) +
		1.274027*math.Sin(2*d-mp) +
		0.658314*math.Sin(2*d) +
		0.213618*math.Sin(2*mp) -
		0.185116*math.Sin(m) -
		0.114332*math.Sin(2*f) +
		0.058793*math.Sin(2*d-2*mp) +
		0.057066*math.Sin(2*d-m-mp) +
		0.053322*math.Sin(2*d+mp) +
		0.045758*math.Sin(2*d-m) -
		0.040923*math.Sin(m-mp) -
		0.034720*math.Sin(d) -
		0.030383*math.Sin(m+mp) +
		0.015327*math.Sin(2*d-2*f) -
		0.012528*math.Sin(mp+2*f) +
		0.010980*math.Sin(mp-2*f) +
		0.010675*math.Sin(4*d-mp) +
		0.010034*math.Sin(3*mp)
	return Normalize(lon)
}
