package classify

import (
	"regexp"

	"github.com/indexity-io/orientdb-stress/types"
)

// serverRules classifies OrientDB server log messages. Most of the noise
// comes from Hazelcast membership churn during restarts; it is expected and
// suppressed. Offline-node and interrupted-storage messages are significant
// but recognized, so they count as KNOWN.
var serverRules = []Rule{
	NewRule(types.ClassSuppressed, "TCP_IP_CONNECT_REFUSED", `Connection refused to address.*\[TcpIpConnector\]`),
	NewRule(types.ClassSuppressed, "TCP_IP_CONNECT_RESET", `\[TcpIpConnection\].*IOException: Connection reset by peer`),
	NewRule(types.ClassSuppressed, "TCP_IP_CONNECT_ERROR", `Removing connection to endpoint.*Connection refused to address.*\[TcpIpConnectionErrorHandler\]`),
	NewRule(types.ClassSuppressed, "TCP_IP_CONNECT_UNKNOWN_HOST", `Removing connection to endpoint.*Cause => java.net.UnknownHostException.*\[TcpIpConnectionErrorHandler\]`),
	NewRule(types.ClassSuppressed, "HAZ_PARTITION_NOT_MEMBER", `CallerNotMemberException: Not Member.*\[PartitionStateOperation\]`),
	NewRule(types.ClassSuppressed, "HAZ_MIGRATION_FAILED", `WARNI.*Migration failed.*\[MigrationManager\]`),
	NewRule(types.ClassSuppressed, "DIST_ASSIGN_NODE_NAME", `WARNI.*Assigning distributed node name.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_MEMBER_ADDR", `WARNI.*You configured your member address as host name.*\[AddressPicker\]`),
	NewRule(types.ClassSuppressed, "DIST_CONFIG_VALIDATOR", `WARNI.*Property hazelcast.* is deprecated.*\[ConfigValidator\]`),
	NewRule(types.ClassSuppressed, "DIST_RETRIEVE_NODES", `WARNI.*Error on retrieving 'registeredNodes' from cluster configuration.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_CONFIG_REPAIR", `WARNI.*Repairing of 'registeredNodes' completed.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_BACKUP_DB_MOVE", `WARNI.*Moving existent database.*and get a fresh copy from a remote node.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_BACKUP_OP_UNSUPPORTED", `SEVER.*not supported during database backup.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_CONNECT_ERROR", `SEVER.*Error on connecting to node.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_NODE_REMOVED", `WARNI.*Node removed id=Member.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_CONSEC_ERRS", `WARNI.*Reached .+ consecutive errors on connection, remove the server.*\[ORemoteServerChannel\]`),
	NewRule(types.ClassSuppressed, "DIST_SUSPECT_NODE", `WARNI.*Member .* is suspected to be dead for reason.*\[MembershipManager\]`),
	NewRule(types.ClassSuppressed, "DIST_DELTA_SYNC", `WARNI.*requesting delta database sync for .* on local server.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_SHUTDOWN", `WARNI.*Shutting down node.*\[OHazelcastPlugin\]`),
	NewRule(types.ClassSuppressed, "DIST_MASTERSHIP", `WARNI.*Mastership of .+ is accepted.*\[ClusterService\]`),
	NewRule(types.ClassSuppressed, "SRV_SCRIPT_ENABLED", `WARNI.*Authenticated clients can execute any kind of code into the server.*\[OServerSideScriptInterpreter\]`),
	NewRule(types.ClassSuppressed, "RECEIVED_SIGNAL", `WARNI Received signal.*\[OSignalHandler\]`),
	NewRule(types.ClassSuppressed, "REMOTE_CONNECT_REFUSED", `Cannot determine protocol version for server.*Connection refused.*\[ORemoteTaskFactoryManagerImpl\]`),
	NewRule(types.ClassSuppressed, "REMOTE_CONNECT_UNKNOWN_HOST", `Cannot determine protocol version for server.*\[ORemoteTaskFactoryManagerImpl\].*UnknownHostException`),
	NewRule(types.ClassKnown, "OFFLINE_NO_AUTH_DB", `OOfflineNodeException.*not online.*executeNoAuthorization`),
	NewRule(types.ClassKnown, "OFFLINE_NO_AUTH_NODE", `OOfflineNodeException.*Distributed server is not yet ONLINE.*executeNoAuthorization`),
	NewRule(types.ClassKnown, "OFFLINE_PROC_DB", `OOfflineNodeException.*not online.*processRequest`),
	NewRule(types.ClassKnown, "OFFLINE_PROC_NODE", `OOfflineNodeException.*Distributed server is not yet ONLINE.*processRequest`),
	NewRule(types.ClassKnown, "STORAGE_INTERRUPT", `WARNI Execution  of thread .* is interrupted.*\[OLocalPaginatedStorage\]`),
}

// serverNamePatterns recognize error-shaped server log messages and extract
// a type label: a Java exception class name, or the log level plus the
// emitting component.
var serverNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\w+Exception)`),
	regexp.MustCompile(`(?m) (WARNI|ERRO|SEVER) .*\[(.+)\]$`),
}

// restRules classifies errors from REST workload operations. Unavailability
// during restarts (503, quorum failures, distributed lock timeouts, MVCC
// conflicts) is expected under disturbance and suppressed.
var restRules = []Rule{
	NewRule(types.ClassSuppressed, "HTTP_503", `HTTP.*503`),
	NewRule(types.ClassSuppressed, "HTTP_500_AVAIL_NODES", `HTTP.*500.*ODistributedException: Not enough nodes online to execute the operation`),
	NewRule(types.ClassSuppressed, "HTTP_500_QUORUM_FAIL", `HTTP.*500.*ODistributedOperationException: Request.*didn't reach the quorum of`),
	NewRule(types.ClassSuppressed, "HTTP_500_DIST_LOCK_TIMEOUT", `HTTP.*500.*ODistributedRecordLockedException: Timeout.*on acquiring lock on record.*on server`),
	NewRule(types.ClassSuppressed, "HTTP_409", `HTTP.*409`),
	NewRule(types.ClassSuppressed, "HTTP_401", `HTTP.*401.*Unauthorized`),
}

// restNamePatterns recognize error-shaped REST failures: a status code with
// an exception name, or a bare 4xx/5xx status.
var restNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s) (\d+).*?(\w+Exception)`),
	regexp.MustCompile(`HTTP (50\d) `),
	regexp.MustCompile(`HTTP (40\d) `),
}

// NewServerClassifier creates the classifier for OrientDB server log
// messages.
//
// Returns:
//   - *Classifier: Classifier loaded with the server rule set
func NewServerClassifier() *Classifier {
	return New(serverRules, serverNamePatterns)
}

// NewRESTClassifier creates the classifier for REST workload operation
// errors.
//
// Returns:
//   - *Classifier: Classifier loaded with the REST rule set
func NewRESTClassifier() *Classifier {
	return New(restRules, restNamePatterns)
}
