// Package localnav converts raw Thymio proximity-sensor readings into
// centimetre distances and drives the reactive-avoidance entry/exit state
// machine. Grounded on original_source/app/local_navigation.py.
package localnav

// lookupTable is an ordered list of (distanceCM, rawSensorValue) pairs, used
// to interpolate a raw reading into a physical distance.
type lookupTable [][2]float64

// Tables for the three sensor orientations. Values are copied verbatim
// from local_navigation.py's SensorsValuesFront/Diag/Back.
var (
	frontTable = lookupTable{
		{1, 4771}, {2, 4684}, {3, 4542}, {4, 4150}, {5, 3720},
		{6, 3383}, {7, 3100}, {8, 2827}, {9, 2600}, {10, 2400}, {11, 2116},
	}
	diagTable = lookupTable{
		{1, 4759}, {2, 4702}, {3, 4600}, {4, 4314}, {5, 3909},
		{6, 3547}, {7, 3254}, {8, 3008}, {9, 2745}, {10, 2500}, {11, 2250},
	}
	backTable = lookupTable{
		{1, 4992}, {2, 4929}, {3, 4762}, {4, 4276}, {5, 3744},
		{6, 3319}, {7, 2977}, {8, 2716}, {9, 2489}, {10, 2279}, {11, 2072},
	}
)

// sensorOrder maps each of the 7 prox.horizontal indices to the table used
// to interpret it, per local_navigation.py's getDistanceArray.
var sensorOrder = []lookupTable{
	frontTable, diagTable, frontTable, diagTable, frontTable, backTable, backTable,
}

// getDistance finds the table entry whose raw value is closest to
// sensorValue, then linearly interpolates against its nearer neighbour.
// Readings that interpolate to >= 12 cm, or that fall past the end of the
// table, are reported as -1 (no detection), per getDistance's exact rule.
func getDistance(sensorValue float64, table lookupTable) float64 {
	idx1 := 0
	best := abs(table[0][1] - sensorValue)
	for i, row := range table {
		if d := abs(row[1] - sensorValue); d < best {
			best = d
			idx1 = i
		}
	}

	distance := table[idx1][1] - sensorValue
	idx2 := idx1 + sign(distance)

	if idx2 >= len(table) {
		return -1
	}
	if idx2 < 0 {
		return table[idx1][0]
	}

	var computed float64
	if distance == 0 {
		computed = table[idx1][0]
	} else {
		absoluteDiff := abs(table[idx2][1] - table[idx1][1])
		percentage := distance / absoluteDiff
		computed = percentage + table[idx1][0]
	}

	if computed >= 12 {
		return -1
	}
	return computed
}

// DistanceArray converts the 7 raw prox.horizontal readings into centimetre
// distances, one per sensor, in the same order as the driver array.
func DistanceArray(raw []float64) []float64 {
	out := make([]float64, len(sensorOrder))
	for i, table := range sensorOrder {
		if i >= len(raw) {
			out[i] = -1
			continue
		}
		out[i] = getDistance(raw[i], table)
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v float64) int {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
