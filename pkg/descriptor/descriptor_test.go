package descriptor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/vnflcm/pkg/engine"
)

const labKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIHZB5Syvfk0jA96bIjFwfLDAAKiyYpuTQZ/3WP1K31mh lab"

func fqns(doc *Document) []string {
	out := make([]string, len(doc.Templates))
	for i, t := range doc.Templates {
		out[i] = t.FQN
	}
	return out
}

func TestLoad_YAMLPreservesOrder(t *testing.T) {
	doc, err := Load(context.Background(), "testdata/lab.yaml")
	require.NoError(t, err)

	assert.Equal(t, "tosca_simple_yaml_1_0", doc.Version)
	assert.Equal(t, "lab deployment", doc.Description)
	assert.Equal(t, "ops", doc.Metadata["author"])
	assert.Equal(t, []string{
		"/vnf1",
		"/vnf1/t1",
		"/vnf1/t1/net1",
		"/vnf1/t1/db",
		"/vnf1/t1/web",
		"/vnf1/t1/db/n1",
		"/vnf1/t1/web/n1",
	}, fqns(doc))
	assert.Equal(t, "InternalComponent", doc.Templates[3].Kind())
}

func TestLoad_CUE(t *testing.T) {
	doc, err := Load(context.Background(), "testdata/scale.cue")
	require.NoError(t, err)

	assert.Equal(t, []string{"/vnf1/t1/web/n2", "/vnf1/t1/web/n3"}, fqns(doc))
	assert.Equal(t, "ao.nodes.Node", doc.Templates[0].Type)
	assert.Equal(t, "n2", doc.Templates[0].Properties["name"])
	assert.Equal(t, "defined", doc.Templates[1].Properties["state"])
}

func TestLoad_MergesInPathOrder(t *testing.T) {
	doc, err := Load(context.Background(), "testdata/lab.yaml", "testdata/scale.cue")
	require.NoError(t, err)

	assert.Len(t, doc.Templates, 9)
	assert.Equal(t, "/vnf1/t1/web/n3", doc.Templates[8].FQN)
	assert.Equal(t, "lab deployment", doc.Description)
	assert.Equal(t, []string{"testdata/lab.yaml", "testdata/scale.cue"}, doc.Sources)
}

func TestLoad_Directory(t *testing.T) {
	doc, err := Load(context.Background(), "testdata")
	require.NoError(t, err)

	assert.Len(t, doc.Sources, 3)
	assert.Equal(t, "/vnf1", doc.Templates[0].FQN)
	assert.Len(t, doc.Templates, 13)
}

func TestLoad_Stdin(t *testing.T) {
	in := strings.NewReader(`
tosca_definitions_version: tosca_simple_yaml_1_0
topology_template:
  node_templates:
    /ext1:
      type: ao.nodes.ExternalComponent
      properties: {name: ext1, state: defined, ipv4: [192.0.2.0/24]}
`)
	doc, err := NewLoader().WithStdin(in).Load(context.Background(), StdinPath)
	require.NoError(t, err)

	require.Len(t, doc.Templates, 1)
	assert.Equal(t, []interface{}{"192.0.2.0/24"}, doc.Templates[0].Properties["ipv4"])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background())
	assert.Error(t, err)

	_, err = Load(context.Background(), "testdata/missing.yaml")
	assert.Error(t, err)

	_, err = ParseYAML("bad.yaml", []byte("topology_template: [unclosed"))
	assert.Error(t, err)

	_, err = ParseYAML("list.yaml", []byte("topology_template:\n  node_templates: [a, b]\n"))
	assert.ErrorContains(t, err, "expected a mapping")

	_, err = NewLoader().ParseCUE("bad.cue", []byte("a: 1\na: 2\n"))
	assert.Error(t, err)
}

func TestLoad_EmptyTemplates(t *testing.T) {
	doc, err := ParseYAML("empty.yaml", []byte("tosca_definitions_version: x\ntopology_template:\n  node_templates:\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Templates)

	findings, err := Validate(doc)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestValidate_Valid(t *testing.T) {
	doc, err := Load(context.Background(), "testdata/lab.yaml", "testdata/scale.cue")
	require.NoError(t, err)

	findings, err := Validate(doc)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestValidate_Invalid(t *testing.T) {
	doc, err := Load(context.Background(), "testdata/invalid.yaml")
	require.NoError(t, err)

	findings, err := Validate(doc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(findings), 5)

	assert.Equal(t, "/topology_template/node_templates//vnf1: 'type' is a required property", findings[0].Error())
	assert.Equal(t, "/topology_template/node_templates//vnf1/t1: unknown type: Cluster", findings[1].Error())
	assert.Equal(t, "/topology_template/node_templates//vnf1/t1/net1: 'properties' is a required property", findings[2].Error())

	var paths []string
	for _, f := range findings[3:] {
		paths = append(paths, f.Path)
	}
	joined := strings.Join(paths, " ")
	assert.Contains(t, joined, "/topology_template/node_templates//vnf1/t1/web/properties/sizing")
	assert.Contains(t, joined, "/topology_template/node_templates//vnf1/t1/web/properties/colour")
}

func TestValidate_MissingHeader(t *testing.T) {
	doc, err := ParseYAML("headless.yaml", []byte("description: nothing else\n"))
	require.NoError(t, err)

	findings, err := Validate(doc)
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	assert.Equal(t, "headless.yaml", findings[0].Source)
}

func TestSchemaRegistry(t *testing.T) {
	sr := NewSchemaRegistry()

	assert.Equal(t, []string{
		"Descriptor", "ExternalComponent", "InternalComponent", "Network", "Node", "Tenant", "VNF",
	}, sr.ListSchemas())

	require.NoError(t, sr.RegisterSchema("Listener", `#Listener: {port: int & >0 & <65536}`))
	findings, err := sr.Check("Listener", map[string]interface{}{"port": 70000})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "/port", findings[0].Path)

	findings, err = sr.Check("Listener", map[string]interface{}{"port": 8080})
	require.NoError(t, err)
	assert.Empty(t, findings)

	findings, err = sr.Check("Listener", map[string]interface{}{"port": 70000, "colour": "red"})
	require.NoError(t, err)
	var paths []string
	for _, f := range findings {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"/port", "/colour"}, paths)

	assert.Error(t, sr.RegisterSchema("Broken", `#Broken: {`))
	assert.Error(t, sr.RegisterSchema("Absent", `#Other: string`))

	_, err = sr.Check("Unknown", nil)
	assert.Error(t, err)
}

func TestToBatch(t *testing.T) {
	doc, err := Load(context.Background(), "testdata/lab.yaml")
	require.NoError(t, err)

	batch, err := ToBatch(doc)
	require.NoError(t, err)
	require.Len(t, batch, 7)

	vnf, ok := batch[0].(*engine.VNFStatement)
	require.True(t, ok)
	assert.Equal(t, "/vnf1", vnf.Target().String())
	assert.Equal(t, "acme", *vnf.Vendor)
	assert.Equal(t, labKey, *vnf.PublicKey)
	assert.Nil(t, vnf.Description)

	tenant := batch[1].(*engine.TenantStatement)
	assert.Equal(t, []engine.Flavor{{Name: "small", VCPUs: 1, RAM: 1024, Disk: 10}}, tenant.Flavors)

	network := batch[2].(*engine.NetworkStatement)
	require.NotNil(t, network.IPv4)
	assert.Equal(t, "10.1.0.0/24", network.IPv4.CIDR)
	assert.True(t, network.IPv4.DHCP)
	assert.Nil(t, network.IPv6)

	db := batch[3].(*engine.InternalComponentStatement)
	assert.Equal(t, &engine.Sizing{Min: 1, Max: 2, Size: 1}, db.Sizing)
	require.Len(t, db.Services, 1)
	assert.Equal(t, []engine.Port{{Protocol: "tcp", Min: 5432, Max: 5432}}, db.Services[0].Ports)

	assert.IsType(t, &engine.NodeStatement{}, batch[6])

	model := engine.NewModel("lab")
	require.NoError(t, model.Apply(batch))
	assert.Equal(t, 1, model.Version)
}

func TestToBatch_Findings(t *testing.T) {
	tests := []struct {
		name     string
		template NodeTemplate
		wantPath string
		wantMsg  string
	}{
		{
			name:     "invalid fqn",
			template: NodeTemplate{FQN: "vnf1", Type: "ao.nodes.VNF", Properties: map[string]interface{}{"name": "v", "state": "defined"}},
			wantPath: "/topology_template/node_templates/vnf1",
		},
		{
			name:     "unknown type",
			template: NodeTemplate{FQN: "/vnf1", Type: "ao.nodes.Cluster", Properties: map[string]interface{}{}},
			wantPath: "/topology_template/node_templates//vnf1",
			wantMsg:  "unknown type: Cluster",
		},
		{
			name:     "missing properties",
			template: NodeTemplate{FQN: "/vnf1", Type: "VNF"},
			wantPath: "/topology_template/node_templates//vnf1",
			wantMsg:  "'properties' is a required property",
		},
		{
			name:     "missing name",
			template: NodeTemplate{FQN: "/vnf1", Type: "VNF", Properties: map[string]interface{}{"state": "defined"}},
			wantPath: "/topology_template/node_templates//vnf1/properties/name",
			wantMsg:  "'name' is a required property",
		},
		{
			name: "bad public key",
			template: NodeTemplate{FQN: "/vnf1", Type: "VNF", Properties: map[string]interface{}{
				"name": "vnf1", "state": "defined", "public_key": "ssh-rsa not-a-key",
			}},
			wantPath: "/topology_template/node_templates//vnf1/properties/public_key",
			wantMsg:  "not a valid SSH public key",
		},
		{
			name: "port range",
			template: NodeTemplate{FQN: "/ext1", Type: "ExternalComponent", Properties: map[string]interface{}{
				"name": "ext1", "state": "defined",
				"services": []interface{}{map[string]interface{}{
					"name": "dns", "network": "/net0",
					"ports": []interface{}{map[string]interface{}{"protocol": "udp", "min": 53, "max": 50}},
				}},
			}},
			wantPath: "/topology_template/node_templates//ext1/properties/services[0]/ports[0]/max",
			wantMsg:  "50 is less than min",
		},
		{
			name: "protocol",
			template: NodeTemplate{FQN: "/ext1", Type: "ExternalComponent", Properties: map[string]interface{}{
				"name": "ext1", "state": "defined",
				"services": []interface{}{map[string]interface{}{
					"name": "dns", "network": "/net0",
					"ports": []interface{}{map[string]interface{}{"protocol": "gre", "min": 0, "max": 0}},
				}},
			}},
			wantPath: "/topology_template/node_templates//ext1/properties/services[0]/ports[0]/protocol",
		},
		{
			name: "sizing bounds",
			template: NodeTemplate{FQN: "/vnf1/t1/web", Type: "InternalComponent", Properties: map[string]interface{}{
				"name": "web", "state": "defined", "sizing": map[string]interface{}{"min": 3, "max": 1},
			}},
			wantPath: "/topology_template/node_templates//vnf1/t1/web/properties/sizing/max",
			wantMsg:  "1 is less than min",
		},
		{
			name: "interface address",
			template: NodeTemplate{FQN: "/vnf1/t1/web/n1", Type: "Node", Properties: map[string]interface{}{
				"name": "n1", "state": "defined",
				"interfaces": []interface{}{map[string]interface{}{"network": "net1", "ipv4": "10.1.0.300"}},
			}},
			wantPath: "/topology_template/node_templates//vnf1/t1/web/n1/properties/interfaces[0]/ipv4",
		},
		{
			name: "cidr",
			template: NodeTemplate{FQN: "/net0", Type: "Network", Properties: map[string]interface{}{
				"name": "net0", "state": "defined", "ipv4": map[string]interface{}{"cidr": "10.0.0.0/33"},
			}},
			wantPath: "/topology_template/node_templates//net0/properties/ipv4/cidr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToBatch(&Document{Templates: []NodeTemplate{tt.template}})
			require.Error(t, err)
			assert.True(t, engine.IsValidationError(err))

			var findings ValidationErrors
			require.True(t, errors.As(err, &findings))
			require.Len(t, findings, 1)
			assert.Equal(t, tt.wantPath, findings[0].Path)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, findings[0].Message)
			}
		})
	}
}

func TestToBatch_CollectsAllFindings(t *testing.T) {
	doc := &Document{Templates: []NodeTemplate{
		{FQN: "/vnf1", Type: "VNF", Properties: map[string]interface{}{}},
		{FQN: "/vnf2", Type: "VNF", Properties: map[string]interface{}{"name": "vnf2", "state": "defined"}},
		{FQN: "/vnf3", Type: "Unknown", Properties: map[string]interface{}{}},
	}}

	_, err := ToBatch(doc)
	var findings ValidationErrors
	require.True(t, errors.As(err, &findings))
	assert.Len(t, findings, 3)
	assert.Equal(t, engine.ErrCodeValidation, engine.CodeOf(err))
}
