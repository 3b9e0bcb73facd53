package game

// PickKnown decides whether the next order offers a recipe the player has
// already learned. With both partitions populated the counter rotates through
// a fixed cycle, offering an unlearned recipe on the last slot of each cycle,
// so the long-run learned/unlearned ratio is exact rather than probabilistic.
// With only one partition populated that partition is always used and the
// counter does not advance.
func PickKnown(counter, knownCount, unknownCount, cycleLength int) (known bool, next int) {
	if knownCount == 0 {
		return false, counter
	}
	if unknownCount == 0 {
		return true, counter
	}
	if cycleLength < 2 {
		cycleLength = 2
	}
	return counter%cycleLength != cycleLength-1, counter + 1
}
