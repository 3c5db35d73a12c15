package bidpredict

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Training-side feature utilities. None of these run on the inference path;
// they exist so that refitting a model version reproduces the columns the
// original artifacts were trained on.

// ClusterOptions configures KMeansLabels. The defaults mirror the fitted
// artifacts: five clusters, a fixed seed, ten restarts.
type ClusterOptions struct {
	K        int
	Seed     int64
	Restarts int
	MaxIter  int
}

// DefaultClusterOptions returns the frozen clustering parameters.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{K: 5, Seed: 42, Restarts: 10, MaxIter: 300}
}

// ClusterResult carries the fitted clustering: one label per input row plus
// the final centroids, so callers can derive the per-centroid distance
// columns the training features include.
type ClusterResult struct {
	Labels    []int
	Centroids [][]float64
}

// Distances returns the Euclidean distance from each row to each centroid,
// one row of len(Centroids) values per input row.
func (r *ClusterResult) Distances(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		d := make([]float64, len(r.Centroids))
		for c, centroid := range r.Centroids {
			d[c] = math.Sqrt(squaredDistance(row, centroid))
		}
		out[i] = d
	}
	return out
}

// KMeansCluster partitions the rows into opts.K clusters using k-means++
// seeding and Lloyd iterations, keeping the best of opts.Restarts runs by
// inertia. The seed makes the result reproducible across refits.
func KMeansCluster(rows [][]float64, opts ClusterOptions) (*ClusterResult, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("kmeans: empty input")
	}
	if opts.K <= 0 || opts.K > len(rows) {
		return nil, fmt.Errorf("kmeans: k=%d out of range for %d rows", opts.K, len(rows))
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	bestInertia := math.Inf(1)
	var best *ClusterResult
	for r := 0; r < opts.Restarts; r++ {
		labels, centroids, inertia := kmeansOnce(rows, opts.K, opts.MaxIter, rng)
		if inertia < bestInertia {
			bestInertia = inertia
			best = &ClusterResult{Labels: labels, Centroids: centroids}
		}
	}
	return best, nil
}

// KMeansLabels is KMeansCluster reduced to the label assignment.
func KMeansLabels(rows [][]float64, opts ClusterOptions) ([]int, error) {
	result, err := KMeansCluster(rows, opts)
	if err != nil {
		return nil, err
	}
	return result.Labels, nil
}

// AppendClusterFeatures fits the clustering over the rows and appends the
// label column plus one distance column per centroid to the frame, matching
// the column set the models were trained against.
func AppendClusterFeatures(f *Frame, rows [][]float64, opts ClusterOptions) (*ClusterResult, error) {
	result, err := KMeansCluster(rows, opts)
	if err != nil {
		return nil, err
	}
	labels := make([]float64, len(result.Labels))
	for i, l := range result.Labels {
		labels[i] = float64(l)
	}
	if err := f.SetNumeric("cluster", labels); err != nil {
		return nil, err
	}
	distances := result.Distances(rows)
	for c := range result.Centroids {
		col := make([]float64, len(rows))
		for i := range distances {
			col[i] = distances[i][c]
		}
		if err := f.SetNumeric(fmt.Sprintf("cluster_%d_distance", c), col); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func kmeansOnce(rows [][]float64, k, maxIter int, rng *rand.Rand) ([]int, [][]float64, float64) {
	centroids := seedPlusPlus(rows, k, rng)
	labels := make([]int, len(rows))
	dims := len(rows[0])
	for iter := 0; iter < maxIter; iter++ {
		moved := false
		for i, row := range rows {
			best := nearestCentroid(row, centroids)
			if best != labels[i] {
				labels[i] = best
				moved = true
			}
		}
		if iter > 0 && !moved {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range rows {
			c := labels[i]
			counts[c]++
			for d, v := range row {
				sums[c][d] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // empty cluster keeps its centroid
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	var inertia float64
	for i, row := range rows {
		inertia += squaredDistance(row, centroids[labels[i]])
	}
	return labels, centroids, inertia
}

func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, copyRow(rows[rng.Intn(len(rows))]))
	dist := make([]float64, len(rows))
	for len(centroids) < k {
		var total float64
		for i, row := range rows {
			d := squaredDistance(row, centroids[len(centroids)-1])
			if len(centroids) == 1 || d < dist[i] {
				dist[i] = d
			}
			total += dist[i]
		}
		if total == 0 {
			centroids = append(centroids, copyRow(rows[rng.Intn(len(rows))]))
			continue
		}
		target := rng.Float64() * total
		var acc float64
		pick := len(rows) - 1
		for i, d := range dist {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, copyRow(rows[pick]))
	}
	return centroids
}

func nearestCentroid(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(row, centroid); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func copyRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}

// PolynomialColumns lists the core columns the degree-2 expansion covers.
var PolynomialColumns = []string{ColBaseAmount, ColLowerBoundRatio, ColParticipantCount}

// ExpandPolynomial appends degree-2 terms (squares and pairwise products,
// no bias column) of the core columns to the frame. Missing columns abort
// the expansion rather than producing a partial set.
func ExpandPolynomial(f *Frame) error {
	cols := make([][]float64, len(PolynomialColumns))
	for i, name := range PolynomialColumns {
		v, ok := f.Numeric(name)
		if !ok {
			return fmt.Errorf("polynomial expansion: missing column %q", name)
		}
		cols[i] = v
	}
	for i, a := range PolynomialColumns {
		for j := i; j < len(PolynomialColumns); j++ {
			b := PolynomialColumns[j]
			name := "poly_" + a + "_" + b
			if err := f.SetNumeric(name, mulCols(cols[i], cols[j])); err != nil {
				return err
			}
		}
	}
	return nil
}

// SelectKBestF ranks feature columns by the univariate F statistic against
// the target and returns the names of the top k, in rank order. Columns with
// undefined correlation (zero variance on either side) score 0.
func SelectKBestF(f *Frame, columns []string, target []float64, k int) ([]string, error) {
	if k <= 0 {
		return nil, fmt.Errorf("feature selection: k must be positive")
	}
	type scored struct {
		name string
		f    float64
	}
	n := len(target)
	ranked := make([]scored, 0, len(columns))
	for _, name := range columns {
		values, ok := f.Numeric(name)
		if !ok {
			return nil, fmt.Errorf("feature selection: missing column %q", name)
		}
		if len(values) != n {
			return nil, fmt.Errorf("feature selection: column %q has %d rows, target has %d", name, len(values), n)
		}
		ranked = append(ranked, scored{name: name, f: fStatistic(values, target)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].f > ranked[j].f })
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := range out {
		out[i] = ranked[i].name
	}
	return out, nil
}

// fStatistic converts the Pearson correlation into the regression F value
// F = r^2 / (1 - r^2) * (n - 2).
func fStatistic(x, y []float64) float64 {
	n := len(x)
	if n < 3 {
		return 0
	}
	mx := meanOf(x)
	my := meanOf(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	r2 := (sxy * sxy) / (sxx * syy)
	if r2 >= 1 {
		return math.Inf(1)
	}
	return r2 / (1 - r2) * float64(n-2)
}

// PCAProject centers the matrix and projects it onto the leading principal
// components that together explain at least the given variance fraction. The
// eigendecomposition uses cyclic Jacobi rotations on the covariance matrix,
// which is exact enough for the narrow matrices the pipeline feeds it.
func PCAProject(rows [][]float64, varianceFraction float64) ([][]float64, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("pca: need at least two rows")
	}
	if varianceFraction <= 0 || varianceFraction > 1 {
		return nil, fmt.Errorf("pca: variance fraction %v out of (0,1]", varianceFraction)
	}
	dims := len(rows[0])
	means := make([]float64, dims)
	for _, row := range rows {
		for d, v := range row {
			means[d] += v
		}
	}
	for d := range means {
		means[d] /= float64(len(rows))
	}
	cov := make([][]float64, dims)
	for i := range cov {
		cov[i] = make([]float64, dims)
	}
	for _, row := range rows {
		for i := 0; i < dims; i++ {
			di := row[i] - means[i]
			for j := i; j < dims; j++ {
				cov[i][j] += di * (row[j] - means[j])
			}
		}
	}
	for i := 0; i < dims; i++ {
		for j := i; j < dims; j++ {
			cov[i][j] /= float64(len(rows) - 1)
			cov[j][i] = cov[i][j]
		}
	}

	eigenvalues, vectors := jacobiEigen(cov)

	order := make([]int, dims)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return eigenvalues[order[a]] > eigenvalues[order[b]] })

	var total float64
	for _, ev := range eigenvalues {
		if ev > 0 {
			total += ev
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("pca: zero total variance")
	}
	keep := 0
	var explained float64
	for _, idx := range order {
		keep++
		if eigenvalues[idx] > 0 {
			explained += eigenvalues[idx]
		}
		if explained/total >= varianceFraction {
			break
		}
	}

	out := make([][]float64, len(rows))
	for r, row := range rows {
		proj := make([]float64, keep)
		for c := 0; c < keep; c++ {
			axis := order[c]
			var sum float64
			for d := 0; d < dims; d++ {
				sum += (row[d] - means[d]) * vectors[d][axis]
			}
			proj[c] = sum
		}
		out[r] = proj
	}
	return out, nil
}

// jacobiEigen diagonalizes a symmetric matrix with cyclic Jacobi rotations.
// It returns the eigenvalues and the matrix of column eigenvectors.
func jacobiEigen(m [][]float64) ([]float64, [][]float64) {
	n := len(m)
	a := make([][]float64, n)
	v := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
		copy(a[i], m[i])
		v[i] = make([]float64, n)
		v[i][i] = 1
	}
	const (
		maxSweeps = 100
		eps       = 1e-12
	)
	for sweep := 0; sweep < maxSweeps; sweep++ {
		var off float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				off += a[i][j] * a[i][j]
			}
		}
		if off < eps {
			break
		}
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				if math.Abs(a[p][q]) < eps {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				for i := 0; i < n; i++ {
					aip := a[i][p]
					aiq := a[i][q]
					a[i][p] = c*aip - s*aiq
					a[i][q] = s*aip + c*aiq
				}
				for i := 0; i < n; i++ {
					api := a[p][i]
					aqi := a[q][i]
					a[p][i] = c*api - s*aqi
					a[q][i] = s*api + c*aqi
				}
				for i := 0; i < n; i++ {
					vip := v[i][p]
					viq := v[i][q]
					v[i][p] = c*vip - s*viq
					v[i][q] = s*vip + c*viq
				}
			}
		}
	}
	eigenvalues := make([]float64, n)
	for i := range eigenvalues {
		eigenvalues[i] = a[i][i]
	}
	return eigenvalues, v
}
