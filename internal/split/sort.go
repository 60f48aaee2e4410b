package split

// Paired quicksort/insertion-sort/heapsort-fallback sort for (vals, ids),
// adapted from the standard library's sort package. Specializing the sort
// instead of going through sort.Interface avoids the interface-call
// overhead on the optimizer's per-node per-feature hot path.
//
// Follows Bentley and McIlroy, "Engineering a Sort Function," SP&E
// November 1993.

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func swap(x []float64, inx []int, i, j int) {
	x[i], x[j] = x[j], x[i]
	inx[i], inx[j] = inx[j], inx[i]
}

func insertionSort(x []float64, inx []int, a, b int) {
	for i := a + 1; i < b; i++ {
		for j := i; j > a && x[j] < x[j-1]; j-- {
			swap(x, inx, j, j-1)
		}
	}
}

// siftDown implements the heap property on data[lo, hi).
// first is an offset into the array where the root of the heap lies.
func siftDown(x []float64, inx []int, lo, hi, first int) {
	root := lo
	for {
		child := 2*root + 1
		if child >= hi {
			break
		}
		if child+1 < hi && x[first+child] < x[first+child+1] {
			child++
		}
		if !(x[first+root] < x[first+child]) {
			return
		}
		swap(x, inx, first+root, first+child)
		root = child
	}
}

func heapSort(x []float64, inx []int, a, b int) {
	first := a
	lo := 0
	hi := b - a

	for i := (hi - 1) / 2; i >= 0; i-- {
		siftDown(x, inx, i, hi, first)
	}
	for i := hi - 1; i >= 0; i-- {
		swap(x, inx, first, first+i)
		siftDown(x, inx, lo, i, first)
	}
}

// medianOfThree moves the median of the three values data[a], data[b], data[c] into data[a].
func medianOfThree(x []float64, inx []int, a, b, c int) {
	m0 := b
	m1 := a
	m2 := c
	if x[m1] < x[m0] {
		swap(x, inx, m1, m0)
	}
	if x[m2] < x[m1] {
		swap(x, inx, m2, m1)
	}
	if x[m1] < x[m0] {
		swap(x, inx, m1, m0)
	}
}

func swapRange(x []float64, inx []int, a, b, n int) {
	for i := 0; i < n; i++ {
		swap(x, inx, a+i, b+i)
	}
}

func doPivot(x []float64, inx []int, lo, hi int) (midlo, midhi int) {
	m := lo + (hi-lo)/2
	if hi-lo > 40 {
		s := (hi - lo) / 8
		medianOfThree(x, inx, lo, lo+s, lo+2*s)
		medianOfThree(x, inx, m, m-s, m+s)
		medianOfThree(x, inx, hi-1, hi-1-s, hi-1-2*s)
	}
	medianOfThree(x, inx, lo, m, hi-1)

	pivot := lo
	a, b, c, d := lo+1, lo+1, hi, hi
	for {
		for b < c {
			if x[b] < x[pivot] {
				b++
			} else if !(x[pivot] < x[b]) {
				swap(x, inx, a, b)
				a++
				b++
			} else {
				break
			}
		}
		for b < c {
			if x[pivot] < x[c-1] {
				c--
			} else if !(x[c-1] < x[pivot]) {
				swap(x, inx, c-1, d-1)
				c--
				d--
			} else {
				break
			}
		}
		if b >= c {
			break
		}
		swap(x, inx, b, c-1)
		b++
		c--
	}

	n := min(b-a, a-lo)
	swapRange(x, inx, lo, b-n, n)

	n = min(hi-d, d-c)
	swapRange(x, inx, c, hi-n, n)

	return lo + b - a, hi - (d - c)
}

func quickSort(x []float64, inx []int, a, b, maxDepth int) {
	for b-a > 7 {
		if maxDepth == 0 {
			heapSort(x, inx, a, b)
			return
		}
		maxDepth--
		mlo, mhi := doPivot(x, inx, a, b)
		if mlo-a < b-mhi {
			quickSort(x, inx, a, mlo, maxDepth)
			a = mhi
		} else {
			quickSort(x, inx, mhi, b, maxDepth)
			b = mlo
		}
	}
	if b-a > 1 {
		insertionSort(x, inx, a, b)
	}
}
