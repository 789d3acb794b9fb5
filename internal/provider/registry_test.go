package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/massmailer/internal/provider"
	"github.com/mixelka/massmailer/pkg/models"
)

// Both senders must satisfy the dispatch interface; only Gmail offers
// delivery feedback
var (
	_ provider.Sender        = (*provider.Gmail)(nil)
	_ provider.StatusChecker = (*provider.Gmail)(nil)
	_ provider.Sender        = (*provider.Outlook)(nil)
)

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	gmail := provider.NewGmail(provider.GmailConfig{})
	outlook := newOutlook(provider.OutlookConfig{})
	registry := provider.NewRegistry(gmail, outlook)

	got, err := registry.Lookup(models.ProviderGmail)
	require.NoError(t, err)
	assert.Equal(t, gmail, got)

	got, err = registry.Lookup(models.ProviderOutlook)
	require.NoError(t, err)
	assert.Equal(t, outlook, got)

	_, err = registry.Lookup("yahoo")
	require.Error(t, err)
}
