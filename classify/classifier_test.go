package classify

import (
	"testing"

	"github.com/indexity-io/orientdb-stress/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNotErrorShaped(t *testing.T) {
	c := NewServerClassifier()

	_, _, ok := c.Classify("2024-05-01 10:00:00:123 INFO  OrientDB Server is active [OServer]")
	assert.False(t, ok)
}

func TestClassifySuppressedServerNoise(t *testing.T) {
	c := NewServerClassifier()

	class, label, ok := c.Classify("2024-05-01 10:00:02:000 WARNI [odb1] Shutting down node odb2 [OHazelcastPlugin]")
	require.True(t, ok)
	assert.Equal(t, types.ClassSuppressed, class)
	assert.Equal(t, "DIST_SHUTDOWN", label)
}

func TestClassifyKnownOfflineNode(t *testing.T) {
	c := NewServerClassifier()

	msg := "2024-05-01 10:00:03:000 SEVER OOfflineNodeException: Database 'stress' is not online, request rejected in processRequest [ODistributedWorker]"
	class, label, ok := c.Classify(msg)
	require.True(t, ok)
	assert.Equal(t, types.ClassKnown, class)
	assert.Equal(t, "OFFLINE_PROC_DB", label)
}

func TestClassifyUnknownExtractsExceptionName(t *testing.T) {
	c := NewServerClassifier()

	msg := "2024-05-01 10:00:04:000 SEVER unexpected failure: com.orientechnologies.OStorageException: broken page [OLocalPaginatedStorage]"
	class, label, ok := c.Classify(msg)
	require.True(t, ok)
	assert.Equal(t, types.ClassUnknown, class)
	assert.Equal(t, "OStorageException", label)
}

func TestClassifyUnknownExtractsLevelAndComponent(t *testing.T) {
	c := NewServerClassifier()

	msg := "2024-05-01 10:00:05:000 WARNI something odd happened [SomeComponent]"
	class, label, ok := c.Classify(msg)
	require.True(t, ok)
	assert.Equal(t, types.ClassUnknown, class)
	assert.Equal(t, "WARNI_SomeComponent", label)
}

func TestClassifyFirstMatchingRuleWins(t *testing.T) {
	c := NewServerClassifier()

	// Matches both the suppressed TcpIpConnector rule and the known
	// offline-node rule; the earlier rule must win.
	msg := "2024-05-01 10:00:06:000 WARNI Connection refused to address odb2/10.0.0.3:2434 [TcpIpConnector]\n" +
		"OOfflineNodeException: Database 'stress' is not online in processRequest"
	class, label, ok := c.Classify(msg)
	require.True(t, ok)
	assert.Equal(t, types.ClassSuppressed, class)
	assert.Equal(t, "TCP_IP_CONNECT_REFUSED", label)
}

func TestClassifyMultiLineMessage(t *testing.T) {
	c := NewServerClassifier()

	// Rule fragments spread across collated lines, stack-trace style.
	msg := "2024-05-01 10:00:07:000 WARNI Connection error [TcpIpConnection]\n" +
		"java.io.IOException: Connection reset by peer\n" +
		"\tat sun.nio.ch.FileDispatcherImpl.read0(Native Method)"
	class, label, ok := c.Classify(msg)
	require.True(t, ok)
	assert.Equal(t, types.ClassSuppressed, class)
	assert.Equal(t, "TCP_IP_CONNECT_RESET", label)
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewServerClassifier()
	msg := "2024-05-01 10:00:08:000 WARNI Received signal: SIGTERM [OSignalHandler]"

	class1, label1, ok1 := c.Classify(msg)
	class2, label2, ok2 := c.Classify(msg)
	assert.Equal(t, class1, class2)
	assert.Equal(t, label1, label2)
	assert.Equal(t, ok1, ok2)
}

func TestRESTClassifySuppressed(t *testing.T) {
	c := NewRESTClassifier()

	class, label, ok := c.Classify("request failed: HTTP 503 Service Unavailable")
	require.True(t, ok)
	assert.Equal(t, types.ClassSuppressed, class)
	assert.Equal(t, "HTTP_503", label)

	class, label, ok = c.Classify("update rejected: HTTP 409 Conflict on version")
	require.True(t, ok)
	assert.Equal(t, types.ClassSuppressed, class)
	assert.Equal(t, "HTTP_409", label)
}

func TestRESTClassifyQuorumFailure(t *testing.T) {
	c := NewRESTClassifier()

	msg := "create failed: HTTP 500 com.orientechnologies.orient.server.distributed.ODistributedOperationException: Request (id=12) didn't reach the quorum of 2"
	class, label, ok := c.Classify(msg)
	require.True(t, ok)
	assert.Equal(t, types.ClassSuppressed, class)
	assert.Equal(t, "HTTP_500_QUORUM_FAIL", label)
}

func TestRESTClassifyUnknown(t *testing.T) {
	c := NewRESTClassifier()

	msg := "update failed: HTTP 500 com.orientechnologies.orient.core.exception.OConcurrentModificationException detected"
	class, label, ok := c.Classify(msg)
	require.True(t, ok)
	assert.Equal(t, types.ClassUnknown, class)
	assert.Equal(t, "500_OConcurrentModificationException", label)
}

func TestRESTClassifyNotErrorShaped(t *testing.T) {
	c := NewRESTClassifier()

	_, _, ok := c.Classify("record updated ok")
	assert.False(t, ok)
}
