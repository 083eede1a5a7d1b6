package judge

const (
	opProblemList      = "problemsetQuestionList"
	opQuestionDetail   = "questionDetail"
	opSubmitSolution   = "submitSolution"
	opSubmissionStatus = "submissionStatus"
	opRunCode          = "interpretSolution"
	opRunStatus        = "interpretStatus"
	opUserStatus       = "globalData"
	opUserProgress     = "userProblemsSolved"
)

const problemListQuery = `
query problemsetQuestionList($categorySlug: String, $limit: Int, $skip: Int, $filters: QuestionListFilterInput) {
  problemsetQuestionList: questionList(
    categorySlug: $categorySlug
    limit: $limit
    skip: $skip
    filters: $filters
  ) {
    total: totalNum
    questions: data {
      frontendQuestionId: questionFrontendId
      title
      titleSlug
      difficulty
      acRate
      isPaidOnly
      status
      topicTags {
        name
        slug
      }
    }
  }
}`

const questionDetailQuery = `
query questionDetail($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    questionId
    frontendQuestionId: questionFrontendId
    title
    titleSlug
    difficulty
    content
    isPaidOnly
    acRate
    status
    topicTags {
      name
      slug
    }
    codeSnippets {
      lang
      langSlug
      code
    }
    hints
    exampleTestcases
  }
}`

const submitSolutionMutation = `
mutation submitSolution($titleSlug: String!, $questionId: String!, $lang: String!, $typedCode: String!) {
  submitSolution(titleSlug: $titleSlug, questionId: $questionId, lang: $lang, typedCode: $typedCode) {
    submissionId
  }
}`

const submissionStatusQuery = `
query submissionStatus($submissionId: ID!) {
  submissionStatus(submissionId: $submissionId) {
    state
    statusMsg
    statusRuntime
    runtimeMs
    memory
    totalCorrect
    totalTestcases
    compileError
    runtimeError
    lastTestcase
    expectedOutput
    codeOutput
  }
}`

const interpretSolutionMutation = `
mutation interpretSolution($titleSlug: String!, $questionId: String!, $lang: String!, $typedCode: String!, $dataInput: String!) {
  interpretSolution(titleSlug: $titleSlug, questionId: $questionId, lang: $lang, typedCode: $typedCode, dataInput: $dataInput) {
    interpretId
  }
}`

const interpretStatusQuery = `
query interpretStatus($interpretId: ID!) {
  interpretStatus(interpretId: $interpretId) {
    state
    statusMsg
    statusRuntime
    runtimeMs
    memory
    totalCorrect
    totalTestcases
    compileError
    runtimeError
    correctAnswer
    codeAnswer
    expectedCodeAnswer
  }
}`

const userStatusQuery = `
query globalData {
  userStatus {
    username
    isSignedIn
  }
}`

const userProgressQuery = `
query userProblemsSolved($username: String!) {
  allQuestionsCount {
    difficulty
    count
  }
  matchedUser(username: $username) {
    submitStatsGlobal {
      acSubmissionNum {
        difficulty
        count
      }
    }
  }
}`
