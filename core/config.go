package core

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time  TimeConfiguration
	Log   LogConfiguration
	Scene SceneConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the delay between event polls, in milliseconds
	EventPollDelay int
}

// LogConfiguration is used to configure logging
type LogConfiguration struct {
	// Level is a logrus level name, e.g. "info" or "debug"
	Level string

	// Format is either "text" or "json"
	Format string
}

// SceneConfiguration is used to configure a scene and its materials
type SceneConfiguration struct {
	// MaterialArchive is a kar pack loaded into the material library,
	// empty uses the built-in materials
	MaterialArchive string

	// Workers is the number of goroutines the demo uses to churn materials
	Workers int
}

// DefaultConfiguration is used for values missing from the environment
var DefaultConfiguration = Configuration{
	Time: TimeConfiguration{
		FramesPerSecond: 60,
		EventPollDelay:  50,
	},
	Log: LogConfiguration{
		Level:  "info",
		Format: "text",
	},
	Scene: SceneConfiguration{
		Workers: 4,
	},
}
