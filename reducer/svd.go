package reducer

import (
	"context"
	"math"
	"sort"

	"github.com/hupe1980/sentvec/matrix"
)

const (
	jacobiTol       = 1e-12
	jacobiMaxSweeps = 60
)

// gram computes AᵗA (cols x cols) in float64.
func gram(ctx context.Context, a *matrix.Matrix) ([][]float64, error) {
	d := a.Cols
	g := make([][]float64, d)
	for i := range g {
		g[i] = make([]float64, d)
	}

	for r := 0; r < a.Rows; r++ {
		if r%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := a.Row(r)
		for i := 0; i < d; i++ {
			ri := float64(row[i])
			if ri == 0 {
				continue
			}
			gi := g[i]
			for j := i; j < d; j++ {
				gi[j] += ri * float64(row[j])
			}
		}
	}

	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			g[j][i] = g[i][j]
		}
	}
	return g, nil
}

// svd computes the decomposition A = U * Sigma * Vᵗ of a square matrix using
// one-sided Jacobi rotations. It modifies a (it becomes U * Sigma) and returns
// Sigma and V. For the symmetric PSD Gram matrix the columns of V are its
// eigenvectors and Sigma its eigenvalues.
func svd(ctx context.Context, a [][]float64) ([]float64, [][]float64, error) {
	n := len(a)

	v := make([][]float64, n)
	for i := range v {
		v[i] = make([]float64, n)
		v[i][i] = 1.0
	}

	for range jacobiMaxSweeps {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !sweep(a, v, n) {
			break
		}
	}

	sigma := make([]float64, n)
	for j := range n {
		var sum float64
		for i := range n {
			sum += a[i][j] * a[i][j]
		}
		sigma[j] = math.Sqrt(sum)
	}
	return sigma, v, nil
}

func sweep(u, v [][]float64, n int) bool {
	changed := false
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			var alpha, beta, gamma float64
			for k := range n {
				alpha += u[k][i] * u[k][i]
				beta += u[k][j] * u[k][j]
				gamma += u[k][i] * u[k][j]
			}

			if alpha < 1e-300 || beta < 1e-300 {
				continue
			}
			if math.Abs(gamma) <= jacobiTol*math.Sqrt(alpha*beta) {
				continue
			}

			changed = true
			rotate(u, v, n, i, j, alpha, beta, gamma)
		}
	}
	return changed
}

func rotate(u, v [][]float64, n, i, j int, alpha, beta, gamma float64) {
	zeta := (beta - alpha) / (2 * gamma)
	var t float64
	if zeta > 0 {
		t = 1 / (zeta + math.Sqrt(1+zeta*zeta))
	} else {
		t = -1 / (-zeta + math.Sqrt(1+zeta*zeta))
	}
	c := 1 / math.Sqrt(1+t*t)
	s := c * t

	for k := range n {
		t1, t2 := u[k][i], u[k][j]
		u[k][i] = c*t1 - s*t2
		u[k][j] = s*t1 + c*t2
	}
	for k := range n {
		t1, t2 := v[k][i], v[k][j]
		v[k][i] = c*t1 - s*t2
		v[k][j] = s*t1 + c*t2
	}
}

// topComponents returns the k columns of v with the largest sigma as
// row-major float32 rows, each sign-normalized so its largest-magnitude
// entry is positive.
func topComponents(sigma []float64, v [][]float64, k int) []float32 {
	n := len(sigma)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sigma[order[a]] > sigma[order[b]]
	})

	out := make([]float32, k*n)
	for c := 0; c < k; c++ {
		col := order[c]

		maxIdx := 0
		for r := 1; r < n; r++ {
			if math.Abs(v[r][col]) > math.Abs(v[maxIdx][col]) {
				maxIdx = r
			}
		}
		sign := 1.0
		if v[maxIdx][col] < 0 {
			sign = -1.0
		}

		row := out[c*n : (c+1)*n]
		for r := 0; r < n; r++ {
			row[r] = float32(sign * v[r][col])
		}
	}
	return out
}
