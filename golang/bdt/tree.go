package bdt

import (
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

//TreeNode is a node of a tree stored in an array. LeftIndex and RightIndex are -1 for a leaf;
//a leaf refers to its LeafNodes entry through LeafIndex. NoSplit marks a root that could not be split.
type TreeNode struct {
	TreeNodeId            int
	FeatureNumber         int
	Threshold             float64
	LeftIndex, RightIndex int
	LeafIndex             int
	NumberOfObjects       int
	CurrentLoss           float64
	Gain                  float64
	Cover                 float64
	NoSplit               bool
}

//NewTreeNode creates a node that is neither split nor attached to a leaf yet.
func NewTreeNode() TreeNode {
	return TreeNode{FeatureNumber: -1, LeftIndex: -1, RightIndex: -1, LeafIndex: -1}
}

//NewTreeNodeFromSplitInfo creates an internal node from a BestSplit.
func NewTreeNodeFromSplitInfo(splitInfo BestSplit, treeNodeId int) TreeNode {
	treeNode := NewTreeNode()
	treeNode.TreeNodeId = treeNodeId
	treeNode.FeatureNumber = splitInfo.featureIndex
	treeNode.Threshold = splitInfo.threshold
	treeNode.NumberOfObjects = splitInfo.numberOfObjects
	treeNode.CurrentLoss = splitInfo.currentValue
	treeNode.Gain = splitInfo.gain
	treeNode.Cover = splitInfo.coverUp + splitInfo.coverDown
	return treeNode
}

//IsLeaf returns whether this node is a leaf.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//GraphDescription renders the node for tree drawings.
func (node TreeNode) GraphDescription(featureNames []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintf("gain: %.4g\n", node.Gain))
	sb.WriteString(fmt.Sprintf("%s < %6.5f", featureName(featureNames, node.FeatureNumber), node.Threshold))
	return sb.String()
}

func featureName(names []string, ind int) string {
	if ind >= 0 && ind < len(names) {
		return names[ind]
	}
	return fmt.Sprintf("f_%d", ind)
}

//LeafNode stores the leaf coefficients of the basis, scaled by the learning rate.
type LeafNode struct {
	LeafNodeId      int
	Prediction      []float64
	NumberOfObjects int
	Cover           float64
}

//GraphDescription renders the leaf for tree drawings.
func (node LeafNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.LeafNodeId))
	sb.WriteString("[")
	for _, val := range node.Prediction {
		sb.WriteString(fmt.Sprintf("  %6.4f,\n", val))
	}
	sb.WriteString("]\n")
	sb.WriteString(fmt.Sprintln(node.NumberOfObjects))
	return sb.String()
}

//NewLeafNode creates a leaf from the optimal coefficients.
func NewLeafNode(leafData *mat.Dense, numberOfObjects int, cover, learningRate float64) *LeafNode {
	h, _ := leafData.Dims()
	leafNode := &LeafNode{LeafNodeId: -1, Prediction: make([]float64, h), NumberOfObjects: numberOfObjects, Cover: cover}
	for ind := 0; ind < h; ind++ {
		leafNode.Prediction[ind] = leafData.At(ind, 0) * learningRate
	}
	return leafNode
}

//OneTree is one tree of the ensemble with its learning curve values after it was added.
type OneTree struct {
	D                int
	TreeNodes        []TreeNode
	LeafNodes        []LeafNode
	LearningCurveRow []float64
}

//NewTree builds one tree on the records of ds given the current raw predictions.
func NewTree(ds *Dataset, bias *mat.Dense, params *treeParams) (oneTree OneTree) {
	oneTree.D = ds.BasisWidth()
	oneTree.BuildTree(ds, bias, nil, 0, params)
	return
}

//BuildTree recurrently builds a tree node and returns its index.
func (oneTree *OneTree) BuildTree(ds *Dataset, bias *mat.Dense, leafInfo *LeafNode, currentDepth int, params *treeParams) int {
	treeNodeId := len(oneTree.TreeNodes)
	if currentDepth < params.maxDepth && ds.Len() > 1 {
		if bestSplit := TheBestSplit(ds, bias, params); bestSplit != nil {
			oneTree.TreeNodes = append(oneTree.TreeNodes, NewTreeNodeFromSplitInfo(*bestSplit, treeNodeId))

			left, right, leftBias, rightBias := ds.Split(bias, *bestSplit)

			leftLeaf := NewLeafNode(bestSplit.deltaUp, left.Len(), bestSplit.coverUp, params.learningRate)
			leftNodeId := oneTree.BuildTree(left, leftBias, leftLeaf, currentDepth+1, params)
			oneTree.TreeNodes[treeNodeId].LeftIndex = leftNodeId

			rightLeaf := NewLeafNode(bestSplit.deltaDown, right.Len(), bestSplit.coverDown, params.learningRate)
			rightNodeId := oneTree.BuildTree(right, rightBias, rightLeaf, currentDepth+1, params)
			oneTree.TreeNodes[treeNodeId].RightIndex = rightNodeId

			return treeNodeId
		}
	}

	currentTreeNode := NewTreeNode()
	currentTreeNode.TreeNodeId = treeNodeId
	currentTreeNode.NumberOfObjects = ds.Len()
	if leafInfo == nil {
		whole := newSplitScanner(ds, bias, params).wholeNode()
		leafInfo = NewLeafNode(whole.deltaWeight, ds.Len(), whole.cover, params.learningRate)
		currentTreeNode.NoSplit = true
		currentTreeNode.CurrentLoss = whole.rawLoss
	}
	currentTreeNode.Cover = leafInfo.Cover
	currentTreeNode.LeafIndex = len(oneTree.LeafNodes)
	leafInfo.LeafNodeId = currentTreeNode.LeafIndex
	oneTree.TreeNodes = append(oneTree.TreeNodes, currentTreeNode)
	oneTree.LeafNodes = append(oneTree.LeafNodes, *leafInfo)
	return treeNodeId
}

//leafFor descends to the leaf of a record.
func (oneTree OneTree) leafFor(features *mat.Dense, p int) *LeafNode {
	ind := 0
	for oneTree.TreeNodes[ind].LeafIndex == -1 {
		node := oneTree.TreeNodes[ind]
		if features.At(p, node.FeatureNumber) < node.Threshold {
			ind = node.LeftIndex
		} else {
			ind = node.RightIndex
		}
	}
	return &oneTree.LeafNodes[oneTree.TreeNodes[ind].LeafIndex]
}

//PredictValue applies the leaf coefficients to the basis; a nil basis is a constant column.
func (oneTree OneTree) PredictValue(features, basis *mat.Dense) (prediction *mat.Dense) {
	h := Height(features)
	prediction = mat.NewDense(h, 1, nil)
	for p := 0; p < h; p++ {
		leaf := oneTree.leafFor(features, p)
		s := 0.0
		for q := 0; q < oneTree.D; q++ {
			b := 1.0
			if basis != nil {
				b = basis.At(p, q)
			}
			s += leaf.Prediction[q] * b
		}
		prediction.Set(p, 0, s)
	}
	return
}

func recurrentDraw(g *cgraph.Graph, tree OneTree, nodeNumber int, parentNode *cgraph.Node, featureNames []string) error {
	node := tree.TreeNodes[nodeNumber]
	currentNode, err := g.CreateNode(fmt.Sprint(node.TreeNodeId))
	if err != nil {
		return err
	}
	if parentNode != nil {
		if _, err := g.CreateEdge("", parentNode, currentNode); err != nil {
			return err
		}
	}

	if node.IsLeaf() {
		currentNode.Set("label", tree.LeafNodes[node.LeafIndex].GraphDescription())
		currentNode.Set("shape", "box")
		return nil
	}
	currentNode.Set("label", node.GraphDescription(featureNames))
	if err := recurrentDraw(g, tree, node.LeftIndex, currentNode, featureNames); err != nil {
		return err
	}
	return recurrentDraw(g, tree, node.RightIndex, currentNode, featureNames)
}

//DrawGraph builds the graphviz representation of the tree.
func (oneTree OneTree) DrawGraph(featureNames []string) (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return nil, nil, err
	}
	if err := recurrentDraw(graph, oneTree, 0, nil, featureNames); err != nil {
		return nil, nil, err
	}
	return graphViz, graph, nil
}
