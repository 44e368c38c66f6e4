package metadata

/** @brief Describes a type of job */
type JobType int

const (
	/** @brief A general job that does not have any specific thread requirements. */
	JOB_TYPE_GENERAL JobType = 0x02
	/** @brief A resource loading job, e.g. building the scene. */
	JOB_TYPE_RESOURCE_LOAD JobType = 0x04
)

func (t JobType) String() string {
	switch t {
	case JOB_TYPE_GENERAL:
		return "general"
	case JOB_TYPE_RESOURCE_LOAD:
		return "resource-load"
	default:
		return "unknown"
	}
}

/**
 * @brief Describes a job to be run.
 */
type JobTask struct {
	JobType JobType
	/** @brief Data passed to OnStart. */
	InputParams interface{}
	/** @brief Required. Results sent on the channel are handed to OnComplete. */
	OnStart func(params interface{}, results chan<- interface{}) error
	/** @brief Invoked with the last result when OnStart succeeds. Optional. */
	OnComplete func(result interface{})
	/** @brief Invoked with the error when OnStart fails. Optional. */
	OnFailure func(err error)
	/** @brief Invoked after either outcome. Optional. */
	OnCompletionCallback func()
}
