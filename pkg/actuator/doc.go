// Package actuator provides the engine.Actuator implementations used by the
// vnflcm command.
//
// DryRun logs every step and records it without touching any
// infrastructure. Hook runs an external command once per step; the command
// receives the step in its environment and the target entity as JSON on
// standard input:
//
//	VNFLCM_CONTEXT          deployment context
//	VNFLCM_RUN_ID           run executing the step
//	VNFLCM_STEP_TYPE        entity type, e.g. Node
//	VNFLCM_STEP_FQN         entity FQN, e.g. /vnf1/t1/web/n1
//	VNFLCM_STEP_ACTION      delta action, e.g. add
//	VNFLCM_STEP_OPERATION   create, update or delete
//
// A hook exiting with status 75 (EX_TEMPFAIL) reports a transient failure
// and the step is retried. Any other non-zero status fails the step.
package actuator
