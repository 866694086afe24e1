package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type AssimParameters struct {
	Title            string  `yaml:"Title"`
	Nx               int     `yaml:"Nx"`
	Ny               int     `yaml:"Ny"`
	Dx               float64 `yaml:"Dx"`
	Dy               float64 `yaml:"Dy"`
	Dt               float64 `yaml:"Dt"`
	Gravity          float64 `yaml:"Gravity"`
	Depth            float64 `yaml:"Depth"`
	Coriolis         float64 `yaml:"Coriolis"`
	Drag             float64 `yaml:"Drag"`
	WindowLength     int     `yaml:"WindowLength"` // assimilation window T
	Subsample        int     `yaml:"Subsample"`    // observation stride in time
	Sigma            float64 `yaml:"Sigma"`        // observation noise std
	NSamples         int     `yaml:"NSamples"`
	Alpha            float64 `yaml:"Alpha"` // gradient penalty coefficient
	Beta             float64 `yaml:"Beta"`  // divergence penalty coefficient
	VarIterations    int     `yaml:"VarIterations"`
	DeepEpochs       int     `yaml:"DeepEpochs"`
	DeepLearningRate float64 `yaml:"DeepLearningRate"`
	DeepBeta1        float64 `yaml:"DeepBeta1"`
	LatentChannels   int     `yaml:"LatentChannels"`
	HiddenChannels   int     `yaml:"HiddenChannels"`
	LogEvery         int     `yaml:"LogEvery"`
}

// Defaults mirrors the reference configuration: a 32x32 periodic grid, a
// 10-step window observed every 2 steps under noise, 250 L-BFGS iterations
// and 2000 deep-prior epochs.
func Defaults() *AssimParameters {
	return &AssimParameters{
		Title:            "shallow-water 4D-Var",
		Nx:               32,
		Ny:               32,
		Dx:               1.0,
		Dy:               1.0,
		Dt:               0.05,
		Gravity:          9.81,
		Depth:            1.0,
		Coriolis:         0.0,
		Drag:             0.0,
		WindowLength:     10,
		Subsample:        2,
		Sigma:            0.05,
		NSamples:         10,
		Alpha:            0.01,
		Beta:             0.01,
		VarIterations:    250,
		DeepEpochs:       2000,
		DeepLearningRate: 0.01,
		DeepBeta1:        0.9,
		LatentChannels:   8,
		HiddenChannels:   32,
		LogEvery:         50,
	}
}

func (ip *AssimParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	return ip.Validate()
}

// Validate fails fast on inconsistent configuration, before any simulator
// or optimizer is constructed.
func (ip *AssimParameters) Validate() error {
	if ip.Nx <= 0 || ip.Ny <= 0 {
		return fmt.Errorf("grid dims must be positive, got Ny=%d Nx=%d", ip.Ny, ip.Nx)
	}
	if ip.Nx%4 != 0 || ip.Ny%4 != 0 {
		return fmt.Errorf("grid dims must be divisible by 4 for the generator's upsampling stack, got Ny=%d Nx=%d", ip.Ny, ip.Nx)
	}
	if ip.Dx <= 0 || ip.Dy <= 0 || ip.Dt <= 0 {
		return fmt.Errorf("grid and time steps must be positive, got Dx=%g Dy=%g Dt=%g", ip.Dx, ip.Dy, ip.Dt)
	}
	if ip.WindowLength <= 0 {
		return fmt.Errorf("window length must be positive, got %d", ip.WindowLength)
	}
	if ip.Subsample <= 0 || ip.Subsample > ip.WindowLength {
		return fmt.Errorf("subsample stride must be in [1,%d], got %d", ip.WindowLength, ip.Subsample)
	}
	if ip.Sigma < 0 {
		return fmt.Errorf("noise sigma must be non-negative, got %g", ip.Sigma)
	}
	if ip.NSamples <= 0 {
		return fmt.Errorf("sample count must be positive, got %d", ip.NSamples)
	}
	if ip.Alpha < 0 || ip.Beta < 0 {
		return fmt.Errorf("regularizer coefficients must be non-negative, got Alpha=%g Beta=%g", ip.Alpha, ip.Beta)
	}
	if ip.VarIterations <= 0 || ip.DeepEpochs <= 0 {
		return fmt.Errorf("iteration budgets must be positive, got VarIterations=%d DeepEpochs=%d", ip.VarIterations, ip.DeepEpochs)
	}
	if ip.DeepLearningRate <= 0 {
		return fmt.Errorf("deep-prior learning rate must be positive, got %g", ip.DeepLearningRate)
	}
	if ip.DeepBeta1 < 0 || ip.DeepBeta1 >= 1 {
		return fmt.Errorf("deep-prior momentum coefficient must be in [0,1), got %g", ip.DeepBeta1)
	}
	if ip.LatentChannels <= 0 || ip.HiddenChannels <= 0 {
		return fmt.Errorf("generator channel counts must be positive, got latent=%d hidden=%d", ip.LatentChannels, ip.HiddenChannels)
	}
	return nil
}

func (ip *AssimParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d x %d]\t\t= Grid (Ny x Nx)\n", ip.Ny, ip.Nx)
	fmt.Printf("%8.5f %8.5f %8.5f\t= Dx, Dy, Dt\n", ip.Dx, ip.Dy, ip.Dt)
	fmt.Printf("%8.5f %8.5f\t\t= Gravity, Depth\n", ip.Gravity, ip.Depth)
	fmt.Printf("%8.5f %8.5f\t\t= Coriolis, Drag\n", ip.Coriolis, ip.Drag)
	fmt.Printf("[%d / %d]\t\t\t= Window length / subsample\n", ip.WindowLength, ip.Subsample)
	fmt.Printf("%8.5f\t\t= Observation sigma\n", ip.Sigma)
	fmt.Printf("[%d]\t\t\t\t= Samples\n", ip.NSamples)
	fmt.Printf("%8.5f %8.5f\t\t= Alpha, Beta\n", ip.Alpha, ip.Beta)
	fmt.Printf("[%d]\t\t\t\t= L-BFGS iterations\n", ip.VarIterations)
	fmt.Printf("[%d] lr=%g beta1=%g\t= Deep-prior epochs, learning rate, momentum\n",
		ip.DeepEpochs, ip.DeepLearningRate, ip.DeepBeta1)
	fmt.Printf("[%d / %d]\t\t\t= Latent / hidden channels\n", ip.LatentChannels, ip.HiddenChannels)
}
