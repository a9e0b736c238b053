package common

// All units are in metric:
// - Speed is in m/s
// - Distance is in meters
// - Time is in seconds

const SpeedOfWalkingMin = 0.23 // or 0.8 km/h or 0.5 mph
const SpeedOfWalkingSlow = 0.5 // or 1.8 km/h or 1.1 mph
const SpeedOfWalkingMean = 1.2 // or 4.3 km/h or 2.7 mph
const SpeedOfWalkingMax = 1.78 // or 6.4 km/h or 4 mph

const SpeedOfRunningMin = 2.23  // or 8 km/h or 5 mph
const SpeedOfRunningMean = 3.35 // or 12 km/h or 7.5 mph or 8min/mile
const SpeedOfRunningMax = 5.56  // or 20 km/h or 12 mph

const SpeedOfCyclingMin = SpeedOfRunningMin
const SpeedOfCyclingMean = 5.36 // or 19.3 km/h or 12 mph
const SpeedOfCyclingMax = 11.76 // or 42 km/h or 26 mph

// SpeedOfDrivingMin is about where a human-powered activity stops being plausible.
const SpeedOfDrivingMin = 4.47 // or 16 km/h or 10 mph
const SpeedOfDrivingHighway = 25.29

// EarthRadiusMeters is the mean spherical radius used for every distance in zoned.
// It is intentionally not orb.EarthRadius (the WGS84 equatorial radius).
const EarthRadiusMeters = 6_371_000.0
