package a2c

import "log"

// A Logger logs status messages which are produced
// during training.
type Logger interface {
	// LogEpisode reports the total undiscounted reward
	// of an episode that replica just finished.
	LogEpisode(replica int, reward float64)

	// LogUpdate reports the statistics of one parameter
	// update.
	LogUpdate(iter int, stats *UpdateStats)
}

// StandardLogger is a Logger which uses the log package.
//
// A field of name <N> controls whether or not the Log<N>
// method does anything.
type StandardLogger struct {
	Episode bool
	Update  bool
}

// LogEpisode logs the result of an episode.
func (s *StandardLogger) LogEpisode(replica int, reward float64) {
	if s.Episode {
		log.Printf("episode: replica=%d reward=%f", replica, reward)
	}
}

// LogUpdate logs the statistics of an update.
func (s *StandardLogger) LogUpdate(iter int, stats *UpdateStats) {
	if s.Update {
		log.Printf("update %d: loss=%f policy=%f value=%f entropy=%f "+
			"grad_norm=%f mean_reward=%f", iter, stats.Loss,
			stats.PolicyLoss, stats.ValueLoss, stats.Entropy,
			stats.GradNorm, stats.MeanReward)
	}
}
