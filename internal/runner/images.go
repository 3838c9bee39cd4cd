package runner

import (
	"fmt"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// jobImages maps each batch workload to its benchmark container image.
var jobImages = map[domain.JobName]string{
	domain.JobBlackscholes: "anakli/cca:parsec_blackscholes",
	domain.JobCanneal:      "anakli/cca:parsec_canneal",
	domain.JobDedup:        "anakli/cca:parsec_dedup",
	domain.JobFerret:       "anakli/cca:parsec_ferret",
	domain.JobFreqmine:     "anakli/cca:parsec_freqmine",
	domain.JobRadix:        "anakli/cca:splash2x_radix",
	domain.JobVips:         "anakli/cca:parsec_vips",
}

// imageFor resolves the container image for a job.
func imageFor(name domain.JobName) (string, error) {
	image, ok := jobImages[name]
	if !ok {
		return "", fmt.Errorf("%w: no image for job %q", domain.ErrInvalidArgument, name)
	}
	return image, nil
}

// suiteFor returns the benchmark suite a job belongs to. Radix is the only
// SPLASH-2 kernel; everything else ships with PARSEC.
func suiteFor(name domain.JobName) string {
	if name == domain.JobRadix {
		return "splash2x"
	}
	return "parsec"
}

// jobCommand builds the in-container benchmark invocation.
func jobCommand(name domain.JobName, threads int) []string {
	return []string{
		"./run",
		"-a", "run",
		"-S", suiteFor(name),
		"-p", name.String(),
		"-i", "native",
		"-n", fmt.Sprintf("%d", threads),
	}
}
