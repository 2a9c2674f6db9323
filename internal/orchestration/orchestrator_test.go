package orchestration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moby/locker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/minisc/minisc/internal/bootscript"
	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/cloud/fake"
	"github.com/minisc/minisc/internal/inventory"
	"github.com/minisc/minisc/internal/provisioning"
	testutil "github.com/minisc/minisc/internal/testing"
)

// memInventory keeps records in memory and remembers every recorded state.
type memInventory struct {
	mu      sync.Mutex
	records map[string]inventory.Record
	states  []string
	err     error
}

func newMemInventory() *memInventory {
	return &memInventory{records: make(map[string]inventory.Record)}
}

func (m *memInventory) Update(_ context.Context, tag string, fn func(*inventory.Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	rec := m.records[tag]
	fn(&rec)
	rec.ClusterTag = tag
	m.records[tag] = rec
	m.states = append(m.states, rec.State)
	return nil
}

func (m *memInventory) record(tag string) inventory.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[tag]
}

func (m *memInventory) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.states...)
}

var _ = Describe("lifecycle transitions", func() {
	DescribeTable("CanTransition",
		func(from, to State, allowed bool) {
			Expect(CanTransition(from, to)).To(Equal(allowed))
		},
		Entry("empty to network", StateEmpty, StateNetworkReady, true),
		Entry("network to security", StateNetworkReady, StateSecurityReady, true),
		Entry("security to head", StateSecurityReady, StateHeadRunning, true),
		Entry("head to awaiting", StateHeadRunning, StateAwaitingJoinToken, true),
		Entry("awaiting to workers", StateAwaitingJoinToken, StateWorkersRunning, true),
		Entry("any live state to aborted", StateHeadRunning, StateAborted, true),
		Entry("skipping a state", StateEmpty, StateSecurityReady, false),
		Entry("going back", StateSecurityReady, StateNetworkReady, false),
		Entry("leaving workers running", StateWorkersRunning, StateAborted, false),
		Entry("leaving aborted", StateAborted, StateEmpty, false),
	)

	It("marks only the end states terminal", func() {
		for _, s := range AllStates {
			terminal := s == StateWorkersRunning || s == StateAborted
			Expect(s.Terminal()).To(Equal(terminal), string(s))
		}
	})
})

var _ = Describe("Orchestrator", func() {
	var (
		provider *fake.Provider
		observer *testutil.RecordingObserver
		inv      *memInventory
		pctx     *provisioning.Context
		orch     *Orchestrator
		renderer *bootscript.Renderer
		locks    *locker.Locker
		ctx      context.Context
		cancel   context.CancelFunc
	)

	newOrchestrator := func(tag string) *Orchestrator {
		cfg := testutil.NewConfigBuilder().WithClusterTag(tag).WithWorkers(2).Build()
		pctx = testutil.NewProvisioningContext(context.Background(), cfg, provider, observer)
		return New(pctx, renderer, WithInventory(inv), WithLocker(locks))
	}

	BeforeEach(func() {
		var err error
		renderer, err = bootscript.NewRenderer("", "")
		Expect(err).NotTo(HaveOccurred())

		provider = fake.New()
		observer = testutil.NewRecordingObserver()
		inv = newMemInventory()
		locks = locker.New()
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		DeferCleanup(func() { cancel() })

		orch = newOrchestrator("demo")
	})

	Describe("ProvisionHead", func() {
		It("walks to AwaitingJoinToken with one running head", func() {
			Expect(orch.ProvisionHead(ctx)).To(Succeed())

			Expect(orch.State()).To(Equal(StateAwaitingJoinToken))
			head := orch.Provisioning().Head
			Expect(head).NotTo(BeNil())
			Expect(head.State).To(Equal(cloud.NodeRunning))
			Expect(head.PublicAddress).NotTo(BeEmpty())
			Expect(provider.Calls("RunInstances")).To(Equal(1))

			Expect(observer.EventsOfType(provisioning.EventStateChanged)).To(HaveLen(4))
			Expect(inv.recorded()).To(Equal([]string{
				string(StateNetworkReady),
				string(StateSecurityReady),
				string(StateHeadRunning),
				string(StateAwaitingJoinToken),
			}))

			rec := inv.record("demo")
			Expect(rec.NetworkID).To(Equal(orch.Provisioning().Topology.NetworkID))
			Expect(rec.SecurityGroupID).To(Equal(orch.Provisioning().Boundary.ID))
			Expect(rec.HeadInstanceID).To(Equal(head.InstanceID))
			Expect(rec.HeadAddress).To(Equal(head.PublicAddress))
			Expect(rec.Provider).To(Equal("fake"))
		})

		It("aborts and records the reason when a step fails", func() {
			provider.FailOn["RunInstances"] = errors.New("InsufficientInstanceCapacity")

			err := orch.ProvisionHead(ctx)
			Expect(err).To(MatchError(ContainSubstring("InsufficientInstanceCapacity")))
			Expect(orch.State()).To(Equal(StateAborted))
			Expect(orch.Reason()).To(ContainSubstring("InsufficientInstanceCapacity"))
			Expect(inv.record("demo").State).To(Equal(string(StateAborted)))
			Expect(inv.record("demo").Reason).To(ContainSubstring("InsufficientInstanceCapacity"))

			By("refusing to restart from Aborted")
			Expect(orch.ProvisionHead(ctx)).To(MatchError(cloud.ErrInvalidState))
		})

		It("keeps going when the inventory cannot be written", func() {
			inv.err = errors.New("AccessDenied")

			Expect(orch.ProvisionHead(ctx)).To(Succeed())
			Expect(orch.State()).To(Equal(StateAwaitingJoinToken))
			Expect(observer.Messages()).To(ContainElement(ContainSubstring("failed to record state")))
		})

		It("waits for another workflow on the same tag", func() {
			locks.Lock("demo")

			done := make(chan error, 1)
			go func() { done <- orch.ProvisionHead(ctx) }()

			Consistently(orch.State, 100*time.Millisecond).Should(Equal(StateEmpty))
			Expect(locks.Unlock("demo")).To(Succeed())

			Eventually(done).Should(Receive(BeNil()))
			Expect(orch.State()).To(Equal(StateAwaitingJoinToken))
		})
	})

	Describe("ProvisionWorkers", func() {
		BeforeEach(func() {
			Expect(orch.ProvisionHead(ctx)).To(Succeed())
		})

		It("resumes with the submitted token", func() {
			done := make(chan error, 1)
			go func() { done <- orch.ProvisionWorkers(ctx) }()

			Expect(orch.SubmitJoinToken("abc123")).To(Succeed())
			Eventually(done).Should(Receive(BeNil()))

			Expect(orch.State()).To(Equal(StateWorkersRunning))
			workers := orch.Provisioning().Workers
			Expect(workers).To(HaveLen(2))
			for _, w := range workers {
				Expect(w.State).To(Equal(cloud.NodeRunning))
				Expect(w.BootScript).To(ContainSubstring("abc123"))
				Expect(w.BootScript).To(ContainSubstring(orch.Provisioning().Head.PrivateAddress))
			}
			Expect(inv.record("demo").WorkerIDs).To(HaveLen(2))
		})

		It("accepts a token submitted before it starts waiting", func() {
			Expect(orch.SubmitJoinToken("early")).To(Succeed())
			Expect(orch.ProvisionWorkers(ctx)).To(Succeed())
			Expect(orch.State()).To(Equal(StateWorkersRunning))
		})

		It("rejects a second or empty token", func() {
			Expect(orch.SubmitJoinToken("")).NotTo(Succeed())
			Expect(orch.SubmitJoinToken("one")).To(Succeed())
			Expect(orch.SubmitJoinToken("two")).To(MatchError(cloud.ErrInvalidState))
		})

		It("stops when the operator aborts", func() {
			done := make(chan error, 1)
			go func() { done <- orch.ProvisionWorkers(ctx) }()
			Eventually(observer.Messages).Should(ContainElement(ContainSubstring("for the join token")))

			Expect(orch.Abort("operator declined")).To(Succeed())

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(err).To(MatchError(ErrAborted))
			Expect(err.Error()).To(ContainSubstring("operator declined"))
			Expect(orch.State()).To(Equal(StateAborted))
			Expect(provider.Calls("RunInstances")).To(Equal(1))
		})

		It("gives up after the join token timeout", func() {
			pctx.Timeouts.JoinToken = 20 * time.Millisecond

			err := orch.ProvisionWorkers(ctx)
			Expect(err).To(MatchError(cloud.ErrTimeout))
			Expect(orch.State()).To(Equal(StateAborted))
		})

		It("stops when the context is cancelled", func() {
			waitCtx, stop := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- orch.ProvisionWorkers(waitCtx) }()
			stop()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(err).To(MatchError(context.Canceled))
			Expect(orch.State()).To(Equal(StateAborted))
		})

		It("aborts when the workers fail to launch", func() {
			provider.FailOn["RunInstances"] = errors.New("VcpuLimitExceeded")
			Expect(orch.SubmitJoinToken("abc123")).To(Succeed())

			Expect(orch.ProvisionWorkers(ctx)).To(MatchError(ContainSubstring("VcpuLimitExceeded")))
			Expect(orch.State()).To(Equal(StateAborted))
		})
	})

	Describe("invalid requests", func() {
		It("refuses workers before the head", func() {
			Expect(orch.ProvisionWorkers(ctx)).To(MatchError(cloud.ErrInvalidState))
			Expect(orch.State()).To(Equal(StateEmpty))
		})

		It("refuses a token before the head", func() {
			Expect(orch.SubmitJoinToken("abc123")).To(MatchError(cloud.ErrInvalidState))
		})

		It("refuses to abort twice", func() {
			Expect(orch.Abort("first")).To(Succeed())
			Expect(orch.Abort("second")).To(MatchError(cloud.ErrInvalidState))
			Expect(orch.Reason()).To(Equal("first"))
		})
	})

	Describe("AttachExisting", func() {
		It("reuses the running cluster without creating anything", func() {
			Expect(orch.ProvisionHead(ctx)).To(Succeed())
			headID := orch.Provisioning().Head.InstanceID
			resources := provider.ResourceCount()

			second := newOrchestrator("demo")
			Expect(second.AttachExisting(ctx)).To(Succeed())

			Expect(second.State()).To(Equal(StateAwaitingJoinToken))
			Expect(second.Provisioning().Head.InstanceID).To(Equal(headID))
			Expect(provider.ResourceCount()).To(Equal(resources))
			Expect(provider.Calls("CreateNetwork")).To(Equal(1))
			Expect(provider.Calls("RunInstances")).To(Equal(1))

			Expect(second.SubmitJoinToken("abc123")).To(Succeed())
			Expect(second.ProvisionWorkers(ctx)).To(Succeed())
			Expect(second.Provisioning().Workers).To(HaveLen(2))
		})

		It("fails with not found when there is no head", func() {
			err := orch.AttachExisting(ctx)
			Expect(err).To(MatchError(cloud.ErrNotFound))
			Expect(orch.State()).To(Equal(StateAborted))
		})
	})
})
