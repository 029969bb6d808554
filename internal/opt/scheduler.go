package opt

// Scheduler adjusts an optimizer's learning rate over the course of training.
type Scheduler interface {
	// Step advances the schedule by one epoch.
	Step()

	// StepWithLoss advances schedules that react to the monitored loss.
	// Schedules that only count epochs ignore the value.
	StepWithLoss(loss float64)
}

// StepLR decays the learning rate by Gamma every StepSize epochs.
type StepLR struct {
	Opt      LRAdjuster
	StepSize int
	Gamma    float64

	epoch int
}

// NewStepLR creates a StepLR schedule over the given optimizer.
func NewStepLR(opt LRAdjuster, stepSize int, gamma float64) *StepLR {
	return &StepLR{Opt: opt, StepSize: stepSize, Gamma: gamma}
}

// Step advances one epoch and decays the learning rate on the boundary.
func (s *StepLR) Step() {
	s.epoch++
	if s.StepSize > 0 && s.epoch%s.StepSize == 0 {
		s.Opt.SetLearningRate(s.Opt.LearningRate() * s.Gamma)
	}
}

// StepWithLoss ignores the loss; StepLR is purely epoch-driven.
func (s *StepLR) StepWithLoss(loss float64) {}
